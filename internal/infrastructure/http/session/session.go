// Package session provides cookie-identified server-side sessions kept in
// the cache repository.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/ports/outbound"
)

const keyPrefix = "session:"

// Data is the persisted session payload.
type Data struct {
	UserID        string `json:"user_id,omitempty"`
	Language      string `json:"user_language,omitempty"`
	IsGuest       bool   `json:"is_guest,omitempty"`
	ChatSessionID string `json:"chat_session_id,omitempty"`
}

// Session is the state of one browser session.
type Session struct {
	ID string
	Data

	stored   bool
	previous string
}

// New returns an empty session with a fresh id. It is not stored until
// saved.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool {
	return !s.stored
}

// Clear drops every value, keeping the id.
func (s *Session) Clear() {
	s.Data = Data{}
}

// Regenerate moves the session to a new id, keeping its values. The old
// entry is removed on the next save. Call it whenever the privilege level
// changes.
func (s *Session) Regenerate() {
	if s.stored {
		s.previous = s.ID
	}
	s.ID = uuid.NewString()
	s.stored = false
}

// Store loads and saves sessions.
type Store struct {
	cache  outbound.CacheRepository
	cookie string
	ttl    time.Duration
	secure bool
	logger *zap.Logger
}

// NewStore creates a session store. Sessions live for cfg.SessionTTL after
// their last save.
func NewStore(cache outbound.CacheRepository, cfg config.AuthConfig, logger *zap.Logger) *Store {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	name := cfg.SessionCookie
	if name == "" {
		name = "smartcrop_session"
	}
	return &Store{
		cache:  cache,
		cookie: name,
		ttl:    ttl,
		secure: cfg.SecureCookies,
		logger: logger.Named("session"),
	}
}

// Load returns the session named by the request cookie, or a new one when
// the cookie is absent, unknown or expired.
func (st *Store) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(st.cookie)
	if err != nil || cookie.Value == "" {
		return New()
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return New()
	}

	raw, err := st.cache.Get(r.Context(), keyPrefix+cookie.Value)
	if err != nil {
		if !errors.Is(err, outbound.ErrCacheMiss) {
			st.logger.Warn("Failed to load session", zap.Error(err))
		}
		return New()
	}

	sess := &Session{ID: cookie.Value, stored: true}
	if err := json.Unmarshal(raw, &sess.Data); err != nil {
		st.logger.Warn("Discarding unreadable session", zap.Error(err))
		return New()
	}
	return sess
}

// Save stores the session and sets its cookie. It must run before the
// response header is written.
func (st *Store) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	raw, err := json.Marshal(sess.Data)
	if err != nil {
		return err
	}
	if err := st.cache.Set(ctx, keyPrefix+sess.ID, raw, st.ttl); err != nil {
		return err
	}
	sess.stored = true

	if sess.previous != "" {
		if err := st.cache.Delete(ctx, keyPrefix+sess.previous); err != nil {
			st.logger.Warn("Failed to drop replaced session", zap.Error(err))
		}
		sess.previous = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     st.cookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(st.ttl.Seconds()),
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy removes the session and expires its cookie.
func (st *Store) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	sess.Clear()
	sess.stored = false
	http.SetCookie(w, &http.Cookie{
		Name:     st.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return st.cache.Delete(ctx, keyPrefix+sess.ID)
}

type contextKey struct{}

// NewContext returns ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the request session. Without one it returns a new,
// unsaved session.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(contextKey{}).(*Session); ok {
		return sess
	}
	return New()
}
