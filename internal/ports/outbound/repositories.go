// Package outbound defines the interfaces the application uses to reach
// storage, caches, reference data and the text-generation provider.
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// ErrCacheMiss is returned by CacheRepository.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// UserRepository persists farmer accounts.
type UserRepository interface {
	Create(ctx context.Context, user *user.User) error
	Update(ctx context.Context, user *user.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

// ChatRepository persists chat sessions and messages. A nil userID
// addresses guest messages, which are stored with a NULL user.
type ChatRepository interface {
	// SaveMessage stores m and, for authenticated messages, creates or
	// bumps its session in the same transaction.
	SaveMessage(ctx context.Context, m *chat.Message) error
	// EnsureSession creates s unless a session with the same id and user exists.
	EnsureSession(ctx context.Context, s *chat.Session) error
	// History returns the messages of a session in timestamp order.
	History(ctx context.Context, sessionID string, userID *uuid.UUID) ([]*chat.Message, error)
	// RecentHistory returns at most limit of the latest messages, oldest first.
	RecentHistory(ctx context.Context, sessionID string, userID *uuid.UUID, limit int) ([]*chat.Message, error)
	// ListSessions returns the user's sessions, most recently updated first.
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Session, error)
	CountSessions(ctx context.Context, userID uuid.UUID) (int64, error)
	CountMessages(ctx context.Context, userID uuid.UUID) (int64, error)
}

// CacheRepository is a byte-oriented key/value store with expiry.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocationLookup geocodes farm locations. Implementations are immutable
// after construction.
type LocationLookup interface {
	Coordinates(state, district string) user.Coordinates
	StatesDistricts() map[string][]string
}
