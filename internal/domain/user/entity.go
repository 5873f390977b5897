// Package user defines the farmer account aggregate and its farm profile.
package user

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/shared"
)

// Validation errors returned by the constructor and mutators.
var (
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
	ErrUsernameTooLong  = errors.New("username must be at most 80 characters")
	ErrInvalidEmail     = errors.New("valid email is required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
	ErrInvalidLanguage  = errors.New("invalid language")
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// FarmProfile contains the farming attributes used to personalise advice.
// A zero FarmSize means the size is unknown.
type FarmProfile struct {
	State          string
	District       string
	FarmSize       float64
	PrimaryCrop    string
	SoilType       string
	IrrigationType string
	Location       *Coordinates
}

// User is a registered farmer.
type User struct {
	shared.AggregateRoot

	id                uuid.UUID
	username          string
	email             string
	passwordHash      string
	isActive          bool
	preferredLanguage language.Code
	voiceEnabled      bool
	profile           FarmProfile
	profileCompleted  bool
	lastWeatherFetch  *time.Time
	createdAt         time.Time
	updatedAt         time.Time
	lastLoginAt       *time.Time
}

// NewUser validates the credentials, hashes the password and returns an
// active farmer with voice enabled.
func NewUser(username, email, password string, preferred language.Code) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if !language.IsSupported(string(preferred)) {
		preferred = language.Default
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	now := time.Now()
	u := &User{
		id:                uuid.New(),
		username:          username,
		email:             email,
		passwordHash:      string(hashedPassword),
		isActive:          true,
		preferredLanguage: preferred,
		voiceEnabled:      true,
		createdAt:         now,
		updatedAt:         now,
	}
	u.AddEvent(FarmerRegisteredEvent{BaseEvent: shared.BaseEvent{At: now}, UserID: u.id, Username: username})
	return u, nil
}

// Snapshot is the persisted state of a User.
type Snapshot struct {
	ID                uuid.UUID
	Username          string
	Email             string
	PasswordHash      string
	IsActive          bool
	PreferredLanguage string
	VoiceEnabled      bool
	Profile           FarmProfile
	ProfileCompleted  bool
	LastWeatherFetch  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       *time.Time
}

// Reconstitute rebuilds a User from persisted state without validation or
// events.
func Reconstitute(s Snapshot) *User {
	return &User{
		id:                s.ID,
		username:          s.Username,
		email:             s.Email,
		passwordHash:      s.PasswordHash,
		isActive:          s.IsActive,
		preferredLanguage: language.Code(s.PreferredLanguage),
		voiceEnabled:      s.VoiceEnabled,
		profile:           s.Profile,
		profileCompleted:  s.ProfileCompleted,
		lastWeatherFetch:  s.LastWeatherFetch,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
		lastLoginAt:       s.LastLoginAt,
	}
}

// Snapshot returns the persisted state of the user.
func (u *User) Snapshot() Snapshot {
	return Snapshot{
		ID:                u.id,
		Username:          u.username,
		Email:             u.email,
		PasswordHash:      u.passwordHash,
		IsActive:          u.isActive,
		PreferredLanguage: string(u.preferredLanguage),
		VoiceEnabled:      u.voiceEnabled,
		Profile:           u.profile,
		ProfileCompleted:  u.profileCompleted,
		LastWeatherFetch:  u.lastWeatherFetch,
		CreatedAt:         u.createdAt,
		UpdatedAt:         u.updatedAt,
		LastLoginAt:       u.lastLoginAt,
	}
}

func (u *User) ID() uuid.UUID                    { return u.id }
func (u *User) Username() string                 { return u.username }
func (u *User) Email() string                    { return u.email }
func (u *User) IsActive() bool                   { return u.isActive }
func (u *User) PreferredLanguage() language.Code { return u.preferredLanguage }
func (u *User) VoiceEnabled() bool               { return u.voiceEnabled }
func (u *User) Profile() FarmProfile             { return u.profile }
func (u *User) ProfileCompleted() bool           { return u.profileCompleted }
func (u *User) LastWeatherFetch() *time.Time     { return u.lastWeatherFetch }
func (u *User) CreatedAt() time.Time             { return u.createdAt }
func (u *User) UpdatedAt() time.Time             { return u.updatedAt }
func (u *User) LastLoginAt() *time.Time          { return u.lastLoginAt }

// CheckPassword verifies if the provided password matches
func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password))
}

// RecordLogin records a login timestamp
func (u *User) RecordLogin() {
	now := time.Now()
	u.lastLoginAt = &now
	u.updatedAt = now
}

// Deactivate blocks future logins.
func (u *User) Deactivate() {
	u.isActive = false
	u.updatedAt = time.Now()
}

// SetPreferredLanguage stores an explicit language choice.
func (u *User) SetPreferredLanguage(code language.Code) error {
	if !language.IsSupported(string(code)) {
		return ErrInvalidLanguage
	}
	u.preferredLanguage = code
	u.updatedAt = time.Now()
	return nil
}

// SetVoiceEnabled toggles spoken replies.
func (u *User) SetVoiceEnabled(enabled bool) {
	u.voiceEnabled = enabled
	u.updatedAt = time.Now()
}

// ProfileUpdate is a partial profile change; nil fields are left alone.
type ProfileUpdate struct {
	State             *string
	District          *string
	FarmSize          *float64
	PrimaryCrop       *string
	SoilType          *string
	IrrigationType    *string
	PreferredLanguage *string
	VoiceEnabled      *bool
}

// LocationChanged reports whether the update names both a state and a
// district, the only case in which the farm is geocoded again.
func (p ProfileUpdate) LocationChanged() bool {
	return p.State != nil && p.District != nil &&
		strings.TrimSpace(*p.State) != "" && strings.TrimSpace(*p.District) != ""
}

// ApplyProfile applies a partial update and marks the profile completed.
// Non-positive farm sizes are ignored. The caller geocodes the new
// location, see SetLocation.
func (u *User) ApplyProfile(update ProfileUpdate, now time.Time) error {
	if update.PreferredLanguage != nil {
		code, ok := language.Parse(*update.PreferredLanguage)
		if !ok {
			return ErrInvalidLanguage
		}
		u.preferredLanguage = code
	}

	setString(&u.profile.State, update.State)
	setString(&u.profile.District, update.District)
	setString(&u.profile.PrimaryCrop, update.PrimaryCrop)
	setString(&u.profile.SoilType, update.SoilType)
	setString(&u.profile.IrrigationType, update.IrrigationType)

	if update.FarmSize != nil && *update.FarmSize > 0 {
		u.profile.FarmSize = *update.FarmSize
	}
	if update.VoiceEnabled != nil {
		u.voiceEnabled = *update.VoiceEnabled
	}

	u.profileCompleted = true
	u.lastWeatherFetch = &now
	u.updatedAt = now
	u.AddEvent(ProfileUpdatedEvent{BaseEvent: shared.BaseEvent{At: now}, UserID: u.id})
	return nil
}

// SetLocation stores the geocoded farm location.
func (u *User) SetLocation(state, district string, coords Coordinates) {
	u.profile.State = state
	u.profile.District = district
	u.profile.Location = &coords
	if state != "" && district != "" {
		u.profileCompleted = true
	}
	u.updatedAt = time.Now()
}

// SetPrimaryCrop sets the crop given at signup.
func (u *User) SetPrimaryCrop(crop string) {
	u.profile.PrimaryCrop = strings.TrimSpace(crop)
	u.updatedAt = time.Now()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 {
		return ErrUsernameTooShort
	}
	if n > 80 {
		return ErrUsernameTooLong
	}
	return nil
}

// maxEmailLength matches the width of the email column.
const maxEmailLength = 100

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") || !strings.Contains(email, ".") || len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
