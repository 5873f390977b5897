package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// UserFinder loads farmers by id.
type UserFinder interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*security.Claims, error)
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User *user.User
	// Claims is set when the caller authenticated with a bearer token.
	Claims *security.Claims
}

type identityKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// CurrentUser returns the authenticated farmer, or nil for guests.
func CurrentUser(ctx context.Context) *user.User {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id.User
}

// TokenClaims returns the bearer token claims of the request, if any.
func TokenClaims(ctx context.Context) *security.Claims {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id.Claims
}

// Authenticate identifies the caller from a bearer token or, without one,
// from the session. Unknown or inactive farmers are treated as guests.
func Authenticate(users UserFinder, tokens TokenValidator, store *session.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw, ok := bearerToken(r); ok {
				claims, err := tokens.Validate(ctx, raw)
				if err != nil {
					logger.Debug("Rejected bearer token", zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
				id, err := claims.UserUUID()
				if err == nil {
					if u := activeUser(ctx, users, id, logger); u != nil {
						ctx = WithIdentity(ctx, Identity{User: u, Claims: claims})
					}
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sess := session.FromContext(ctx)
			if sess.UserID != "" {
				id, err := uuid.Parse(sess.UserID)
				var u *user.User
				if err == nil {
					u = activeUser(ctx, users, id, logger)
				}
				if u == nil {
					sess.UserID = ""
					if err := store.Save(ctx, w, sess); err != nil {
						logger.Warn("Failed to clear stale session user", zap.Error(err))
					}
				} else {
					ctx = WithIdentity(ctx, Identity{User: u})
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects guests with 401.
func RequireUser(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentUser(r.Context()) == nil {
				render.Error(w, r, logger, apperrors.NewUnauthorizedError(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func activeUser(ctx context.Context, users UserFinder, id uuid.UUID, logger *zap.Logger) *user.User {
	u, err := users.Get(ctx, id)
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeUserNotFound) {
			logger.Warn("Failed to load session user", zap.Stringer("user_id", id), zap.Error(err))
		}
		return nil
	}
	if !u.IsActive() {
		return nil
	}
	return u
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
