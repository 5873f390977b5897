package gorm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/ports/outbound"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// UserRepository implements outbound.UserRepository using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ outbound.UserRepository = (*UserRepository)(nil)

// Create inserts a new farmer. Unique violations map to the matching
// conflict error.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := r.db.WithContext(ctx).Create(FarmerToModel(u)).Error; err != nil {
		return uniqueViolation(err, u)
	}
	return nil
}

// Update saves every column of an existing farmer
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	model := FarmerToModel(u)
	result := r.db.WithContext(ctx).Model(&FarmerModel{ID: model.ID}).Select("*").Updates(model)
	if result.Error != nil {
		return uniqueViolation(result.Error, u)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewUserNotFoundError(u.ID().String())
	}
	return nil
}

// FindByID finds a farmer by ID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.first(ctx, id.String(), "id = ?", id)
}

// FindByEmail finds a farmer by email, case-insensitively
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, email, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// FindByUsername finds a farmer by exact username
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.first(ctx, username, "username = ?", username)
}

func (r *UserRepository) first(ctx context.Context, ref string, query string, arg interface{}) (*user.User, error) {
	var model FarmerModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewUserNotFoundError(ref)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("load farmer", err)
	}
	return ModelToFarmer(&model), nil
}

func uniqueViolation(err error, u *user.User) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key") {
		return apperrors.NewDatabaseError("save farmer", err)
	}
	if strings.Contains(msg, "email") {
		return apperrors.NewEmailAlreadyExistsError(u.Email()).WithCause(err)
	}
	return apperrors.NewUsernameAlreadyExistsError(u.Username()).WithCause(err)
}
