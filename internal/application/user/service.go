// Package user provides the farmer account use cases: registration,
// login and profile maintenance.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/shared"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/ports/outbound"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// UserService implements farmer account use cases
type UserService struct {
	userRepo  outbound.UserRepository
	locations outbound.LocationLookup
	handlers  []shared.EventHandler
	now       func() time.Time
	logger    *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo outbound.UserRepository,
	locations outbound.LocationLookup,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		locations: locations,
		now:       time.Now,
		logger:    logger.Named("user-service"),
	}
}

// Subscribe registers a handler for the domain events of every farmer the
// service changes. Not safe for use once requests are being served.
func (s *UserService) Subscribe(handler shared.EventHandler) {
	s.handlers = append(s.handlers, handler)
}

// RegisterCommand contains farmer registration data
type RegisterCommand struct {
	Username    string
	Email       string
	Password    string
	State       string
	District    string
	PrimaryCrop string
	Language    language.Code
}

// Register creates a farmer account. Location and crop are optional; when
// both state and district are given the farm is geocoded.
func (s *UserService) Register(ctx context.Context, cmd RegisterCommand) (*user.User, error) {
	s.logger.Info("Registering new farmer", zap.String("username", cmd.Username))

	farmer, err := user.NewUser(cmd.Username, cmd.Email, cmd.Password, cmd.Language)
	if err != nil {
		return nil, apperrors.NewValidationError(capitalize(err.Error()))
	}

	if err := s.ensureUnique(ctx, farmer); err != nil {
		return nil, err
	}

	state, district := strings.TrimSpace(cmd.State), strings.TrimSpace(cmd.District)
	if state != "" && district != "" {
		farmer.SetLocation(state, district, s.locations.Coordinates(state, district))
	}
	if crop := strings.TrimSpace(cmd.PrimaryCrop); crop != "" {
		farmer.SetPrimaryCrop(crop)
	}

	if err := s.userRepo.Create(ctx, farmer); err != nil {
		return nil, err
	}

	s.publish(farmer)
	return farmer, nil
}

func (s *UserService) ensureUnique(ctx context.Context, farmer *user.User) error {
	if _, err := s.userRepo.FindByEmail(ctx, farmer.Email()); err == nil {
		return apperrors.NewEmailAlreadyExistsError(farmer.Email())
	} else if !apperrors.Is(err, apperrors.CodeUserNotFound) {
		return err
	}

	if _, err := s.userRepo.FindByUsername(ctx, farmer.Username()); err == nil {
		return apperrors.NewUsernameAlreadyExistsError(farmer.Username())
	} else if !apperrors.Is(err, apperrors.CodeUserNotFound) {
		return err
	}
	return nil
}

// Authenticate checks credentials and records the login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	farmer, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.Is(err, apperrors.CodeUserNotFound) {
			return nil, apperrors.NewInvalidCredentialsError()
		}
		return nil, err
	}

	if err := farmer.CheckPassword(password); err != nil {
		s.logger.Warn("Invalid password attempt", zap.String("user_id", farmer.ID().String()))
		return nil, apperrors.NewInvalidCredentialsError()
	}

	if !farmer.IsActive() {
		return nil, apperrors.NewAccountInactiveError()
	}

	farmer.RecordLogin()
	if err := s.userRepo.Update(ctx, farmer); err != nil {
		s.logger.Error("Failed to update last login", zap.Error(err))
	}

	s.logger.Info("Farmer logged in", zap.String("user_id", farmer.ID().String()))
	return farmer, nil
}

// Get loads a farmer by id.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// UpdateProfile applies a partial profile update. A changed state or
// district re-geocodes the farm.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, update user.ProfileUpdate) (*user.User, error) {
	farmer, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := farmer.ApplyProfile(update, s.now()); err != nil {
		if errors.Is(err, user.ErrInvalidLanguage) {
			return nil, apperrors.NewUnsupportedLanguageError(*update.PreferredLanguage)
		}
		return nil, apperrors.NewValidationError(capitalize(err.Error()))
	}

	if update.LocationChanged() {
		p := farmer.Profile()
		farmer.SetLocation(p.State, p.District, s.locations.Coordinates(p.State, p.District))
	}

	if err := s.userRepo.Update(ctx, farmer); err != nil {
		return nil, err
	}

	s.publish(farmer)
	return farmer, nil
}

// SetLanguage stores an explicit language choice.
func (s *UserService) SetLanguage(ctx context.Context, id uuid.UUID, raw string) (*user.User, error) {
	code, ok := language.Parse(raw)
	if !ok {
		return nil, apperrors.NewUnsupportedLanguageError(raw)
	}

	farmer, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := farmer.SetPreferredLanguage(code); err != nil {
		return nil, apperrors.NewUnsupportedLanguageError(raw)
	}
	if err := s.userRepo.Update(ctx, farmer); err != nil {
		return nil, err
	}
	return farmer, nil
}

// SetVoice toggles spoken replies.
func (s *UserService) SetVoice(ctx context.Context, id uuid.UUID, enabled bool) (*user.User, error) {
	farmer, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	farmer.SetVoiceEnabled(enabled)
	if err := s.userRepo.Update(ctx, farmer); err != nil {
		return nil, err
	}
	return farmer, nil
}

func (s *UserService) publish(farmer *user.User) {
	for _, event := range farmer.Events() {
		s.logger.Info("Domain event",
			zap.String("event", event.EventName()),
			zap.String("user_id", farmer.ID().String()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
		for _, handle := range s.handlers {
			if err := handle(event); err != nil {
				s.logger.Warn("Event handler failed",
					zap.String("event", event.EventName()),
					zap.Error(err),
				)
			}
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
