// Package handlers provides the HTTP handlers of the farmer advisory API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/smartcrop/advisor/internal/application/chat"
	"github.com/smartcrop/advisor/internal/application/dashboard"
	usersvc "github.com/smartcrop/advisor/internal/application/user"
	"github.com/smartcrop/advisor/internal/domain/advisory"
	domainchat "github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// UserService is the farmer account use cases the handlers call.
type UserService interface {
	Register(ctx context.Context, cmd usersvc.RegisterCommand) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update user.ProfileUpdate) (*user.User, error)
	SetLanguage(ctx context.Context, id uuid.UUID, raw string) (*user.User, error)
	SetVoice(ctx context.Context, id uuid.UUID, enabled bool) (*user.User, error)
}

// Advisor produces recommendations.
type Advisor interface {
	Recommend(ctx context.Context, kind advisory.Kind, snap advisory.Snapshot) advisory.Result
	Now() time.Time
}

// ChatService answers and lists chat turns.
type ChatService interface {
	HandleTurn(ctx context.Context, turn chat.Turn) (*chat.Reply, error)
	InitSession(ctx context.Context, sessionID string, u *user.User) (string, error)
	History(ctx context.Context, sessionID string, u *user.User) ([]*domainchat.Message, error)
	Sessions(ctx context.Context, u *user.User) ([]*domainchat.Session, error)
}

// DashboardBuilder assembles the dashboard summary.
type DashboardBuilder interface {
	Build(ctx context.Context, u *user.User, lang language.Code) (*dashboard.Dashboard, error)
}

// TokenIssuer issues and revokes API access tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, username string) (string, time.Time, error)
	Revoke(ctx context.Context, claims *security.Claims) error
}

// AuthAuditor records authentication attempts.
type AuthAuditor interface {
	LogAuthentication(ctx context.Context, ev security.AuthEvent)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs the struct validation of a request DTO and turns
// the failures into one client-facing validation error.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewBadRequestError("Invalid request")
	}

	var missing, other []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		other = append(other, describe(fe))
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("Missing required fields: " + strings.Join(missing, ", "))
	}
	return apperrors.NewValidationError(other[0])
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
