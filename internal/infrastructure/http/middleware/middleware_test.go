package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/memory"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

type fakeUsers map[uuid.UUID]*user.User

func (f fakeUsers) Get(_ context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperrors.NewUserNotFoundError(id.String())
}

type fixture struct {
	store  *session.Store
	tokens *security.TokenService
	users  fakeUsers
	farmer *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cache := memory.NewCacheRepository()
	t.Cleanup(func() { _ = cache.Close() })
	logger := zaptest.NewLogger(t)

	farmer, err := user.NewUser("ramesh", "ramesh@example.com", "kharif-2024", language.Telugu)
	require.NoError(t, err)

	return &fixture{
		store:  session.NewStore(cache, config.AuthConfig{SessionCookie: "sid", SessionTTL: time.Hour}, logger),
		tokens: security.NewTokenService("secret", time.Hour, cache, logger),
		users:  fakeUsers{farmer.ID(): farmer},
		farmer: farmer,
	}
}

// chain runs the session, identity and language middleware in server order.
func (f *fixture) chain(t *testing.T, h http.Handler) http.Handler {
	logger := zaptest.NewLogger(t)
	return Sessions(f.store)(
		Authenticate(f.users, f.tokens, f.store, logger)(
			ResolveLanguage(f.store, logger)(h)))
}

// loggedIn returns the cookie of a stored session owned by the farmer.
func (f *fixture) loggedIn(t *testing.T, lang string) *http.Cookie {
	sess := session.New()
	sess.UserID = f.farmer.ID().String()
	sess.Language = lang
	rec := httptest.NewRecorder()
	require.NoError(t, f.store.Save(context.Background(), rec, sess))
	return rec.Result().Cookies()[0]
}

func TestLogger_PassesResponseThrough(t *testing.T) {
	h := Logger(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brewing"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "brewing", rec.Body.String())
}

func TestSecurity_SetsHeaders(t *testing.T) {
	h := Security()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS([]string{"https://farm.example"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "https://farm.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://farm.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.False(t, called)
	})

	t.Run("other origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.True(t, called)
	})
}

func TestAuthenticate_SessionUser(t *testing.T) {
	f := newFixture(t)
	var got *user.User
	h := f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.loggedIn(t, "te"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, f.farmer.ID(), got.ID())
}

func TestAuthenticate_StaleSessionUserBecomesGuest(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedIn(t, "te")
	delete(f.users, f.farmer.ID())

	var got *user.User
	h := f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, got)

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(cookie)
	assert.Empty(t, f.store.Load(reload).UserID)
}

func TestAuthenticate_BearerToken(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.Issue(f.farmer.ID(), f.farmer.Username())
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantUser bool
	}{
		{name: "valid token", header: "Bearer " + token, wantUser: true},
		{name: "lowercase scheme", header: "bearer " + token, wantUser: true},
		{name: "garbage token", header: "Bearer not-a-jwt", wantUser: false},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantUser: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *user.User
			var claims *security.Claims
			h := f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = CurrentUser(r.Context())
				claims = TokenClaims(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.wantUser {
				require.NotNil(t, got)
				assert.Equal(t, f.farmer.ID(), got.ID())
				require.NotNil(t, claims)
				assert.Empty(t, rec.Result().Cookies(), "token callers get no session cookie")
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.Issue(f.farmer.ID(), f.farmer.Username())
	require.NoError(t, err)
	claims, err := f.tokens.Validate(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Revoke(context.Background(), claims))

	var got *user.User
	h := f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, got)
}

func TestRequireUser(t *testing.T) {
	f := newFixture(t)
	logger := zaptest.NewLogger(t)
	h := f.chain(t, RequireUser(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	t.Run("guest", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
		assert.Contains(t, rec.Body.String(), "Authentication required")
	})

	t.Run("farmer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(f.loggedIn(t, "te"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestResolveLanguage(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		query      string
		cookie     string
		accept     string
		loggedIn   string
		wantCode   language.Code
		wantSource language.Source
	}{
		{name: "override wins", query: "?lang=HI", cookie: "ta", wantCode: language.Hindi, wantSource: language.SourceOverride},
		{name: "invalid override falls to cookie", query: "?lang=xx", cookie: "ta", wantCode: language.Tamil, wantSource: language.SourceCookie},
		{name: "session beats cookie", cookie: "ta", loggedIn: "bn", wantCode: language.Bengali, wantSource: language.SourceSession},
		{name: "browser", accept: "mr-IN,mr;q=0.9,en;q=0.5", wantCode: language.Marathi, wantSource: language.SourceBrowser},
		{name: "default", wantCode: language.English, wantSource: language.SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got language.Resolution
			h := f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = Language(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LanguageCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			if tt.loggedIn != "" {
				req.AddCookie(f.loggedIn(t, tt.loggedIn))
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestResolveLanguage_WritesBackToSession(t *testing.T) {
	f := newFixture(t)
	h := f.chain(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	// First request resolves from the browser and stores the result.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "te-IN")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	// The next request short-circuits at the session.
	var got language.Resolution
	h = f.chain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Language(r.Context())
	}))
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	next.Header.Set("Accept-Language", "hi-IN")
	h.ServeHTTP(httptest.NewRecorder(), next)

	assert.Equal(t, language.Telugu, got.Code)
	assert.Equal(t, language.SourceSession, got.Source)
}

func TestLanguage_DefaultOutsideMiddleware(t *testing.T) {
	assert.Equal(t, language.English, Language(context.Background()).Code)
}
