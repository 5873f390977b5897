// Package sqlite provides SQLite database setup and seeding
package sqlite

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	gormrepo "github.com/smartcrop/advisor/internal/infrastructure/persistence/gorm"
	"github.com/smartcrop/advisor/internal/ports/outbound"
)

// SetupDatabase opens the SQLite file at dbPath (in memory when empty) and
// migrates the schema.
func SetupDatabase(dbPath string, gormLogger logger.Interface) (*gorm.DB, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gormrepo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// demoFarmers are created by SeedDatabase. Password is "password".
var demoFarmers = []struct {
	username, email, state, district, crop string
	lang                                   language.Code
}{
	{"ramesh_gadwal", "ramesh@smartcrop.local", "Telangana", "Jogulamba Gadwal", "Cotton", language.Telugu},
	{"lakshmi_pune", "lakshmi@smartcrop.local", "Maharashtra", "Pune", "Sugarcane", language.Marathi},
}

// SeedDatabase creates the demo farmers unless any farmer exists
func SeedDatabase(db *gorm.DB, locations outbound.LocationLookup, log *zap.Logger) error {
	var count int64
	if err := db.Model(&gormrepo.FarmerModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count farmers: %w", err)
	}
	if count > 0 {
		return nil
	}

	var errs []error
	for _, d := range demoFarmers {
		u, err := user.NewUser(d.username, d.email, "password", d.lang)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		u.SetLocation(d.state, d.district, locations.Coordinates(d.state, d.district))
		u.SetPrimaryCrop(d.crop)
		if err := db.Create(gormrepo.FarmerToModel(u)).Error; err != nil {
			errs = append(errs, fmt.Errorf("failed to create demo farmer %s: %w", d.username, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info("Seeded demo farmers", zap.Int("count", len(demoFarmers)))
	return nil
}
