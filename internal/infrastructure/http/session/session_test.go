package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/memory"
)

func newStore(t *testing.T) (*Store, *memory.CacheRepository) {
	t.Helper()
	cache := memory.NewCacheRepository()
	t.Cleanup(func() { _ = cache.Close() })
	cfg := config.AuthConfig{SessionCookie: "sid", SessionTTL: time.Hour}
	return NewStore(cache, cfg, zaptest.NewLogger(t)), cache
}

func TestStore_LoadWithoutCookie(t *testing.T) {
	store, _ := newStore(t)

	sess := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, sess.IsNew())
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Language)
}

func TestStore_SaveThenLoad(t *testing.T) {
	store, _ := newStore(t)

	// Arrange
	sess := New()
	sess.Language = "te"
	sess.IsGuest = true
	rec := httptest.NewRecorder()

	// Act
	require.NoError(t, store.Save(context.Background(), rec, sess))

	// Assert
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, sess.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded := store.Load(req)
	assert.False(t, loaded.IsNew())
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "te", loaded.Language)
	assert.True(t, loaded.IsGuest)
}

func TestStore_UnknownOrMalformedCookie(t *testing.T) {
	store, cache := newStore(t)

	tests := []struct {
		name  string
		value string
		seed  []byte
	}{
		{name: "not a uuid", value: "../../etc"},
		{name: "unknown id", value: "8f14e45f-ceea-467a-9a3b-6a1c2d6e0b11"},
		{name: "corrupt payload", value: "0b9d2a0c-3b1e-4a43-9a57-3f0a8f1f6c22", seed: []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seed != nil {
				require.NoError(t, cache.Set(context.Background(), keyPrefix+tt.value, tt.seed, time.Minute))
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "sid", Value: tt.value})

			sess := store.Load(req)

			assert.True(t, sess.IsNew())
			assert.NotEqual(t, tt.value, sess.ID)
		})
	}
}

func TestStore_Destroy(t *testing.T) {
	store, cache := newStore(t)
	ctx := context.Background()

	sess := New()
	sess.UserID = "someone"
	require.NoError(t, store.Save(ctx, httptest.NewRecorder(), sess))

	rec := httptest.NewRecorder()
	require.NoError(t, store.Destroy(ctx, rec, sess))

	exists, err := cache.Exists(ctx, keyPrefix+sess.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, sess.UserID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestStore_Regenerate(t *testing.T) {
	store, cache := newStore(t)
	ctx := context.Background()

	sess := New()
	sess.Language = "hi"
	require.NoError(t, store.Save(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	sess.Regenerate()
	sess.UserID = "farmer"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(ctx, rec, sess))

	assert.NotEqual(t, oldID, sess.ID)
	exists, err := cache.Exists(ctx, keyPrefix+oldID)
	require.NoError(t, err)
	assert.False(t, exists, "old session id must not stay usable")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	loaded := store.Load(req)
	assert.Equal(t, "hi", loaded.Language)
	assert.Equal(t, "farmer", loaded.UserID)
}

func TestFromContext(t *testing.T) {
	sess := New()
	ctx := NewContext(context.Background(), sess)

	assert.Same(t, sess, FromContext(ctx))
	assert.True(t, FromContext(context.Background()).IsNew())
}
