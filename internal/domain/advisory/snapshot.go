package advisory

import (
	"time"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// DefaultCrop is assumed when the farmer has not named a primary crop.
const DefaultCrop = "Rice"

// Snapshot is the read-only view of a farmer used to build one prompt.
type Snapshot struct {
	State          string
	District       string
	PrimaryCrop    string
	FarmSize       float64
	SoilType       string
	IrrigationType string
	Language       language.Code
	Date           time.Time
}

// SnapshotOf copies the farm profile of u. u is not modified.
func SnapshotOf(u *user.User, lang language.Code, now time.Time) Snapshot {
	p := u.Profile()
	return Snapshot{
		State:          p.State,
		District:       p.District,
		PrimaryCrop:    p.PrimaryCrop,
		FarmSize:       p.FarmSize,
		SoilType:       p.SoilType,
		IrrigationType: p.IrrigationType,
		Language:       lang,
		Date:           now,
	}
}

// Overrides replaces snapshot fields for a single request.
type Overrides struct {
	State          string
	District       string
	PrimaryCrop    string
	FarmSize       float64
	SoilType       string
	IrrigationType string
}

// With returns a copy of s with the non-empty overrides applied.
func (s Snapshot) With(o Overrides) Snapshot {
	if o.State != "" {
		s.State = o.State
	}
	if o.District != "" {
		s.District = o.District
	}
	if o.PrimaryCrop != "" {
		s.PrimaryCrop = o.PrimaryCrop
	}
	if o.FarmSize > 0 {
		s.FarmSize = o.FarmSize
	}
	if o.SoilType != "" {
		s.SoilType = o.SoilType
	}
	if o.IrrigationType != "" {
		s.IrrigationType = o.IrrigationType
	}
	return s
}

// Crop returns the primary crop or DefaultCrop.
func (s Snapshot) Crop() string {
	if s.PrimaryCrop == "" {
		return DefaultCrop
	}
	return s.PrimaryCrop
}

// Season derives the cropping season from the snapshot date.
func (s Snapshot) Season() Season {
	return SeasonFor(s.Date)
}
