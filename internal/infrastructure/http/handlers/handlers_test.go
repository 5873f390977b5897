package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/smartcrop/advisor/internal/application/chat"
	usersvc "github.com/smartcrop/advisor/internal/application/user"
	"github.com/smartcrop/advisor/internal/domain/advisory"
	domainchat "github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/infrastructure/geo"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/memory"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
	"github.com/smartcrop/advisor/test/testutils"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Register(ctx context.Context, cmd usersvc.RegisterCommand) (*user.User, error) {
	args := m.Called(ctx, cmd)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) UpdateProfile(ctx context.Context, id uuid.UUID, update user.ProfileUpdate) (*user.User, error) {
	args := m.Called(ctx, id, update)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) SetLanguage(ctx context.Context, id uuid.UUID, raw string) (*user.User, error) {
	args := m.Called(ctx, id, raw)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) SetVoice(ctx context.Context, id uuid.UUID, enabled bool) (*user.User, error) {
	args := m.Called(ctx, id, enabled)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type mockChat struct{ mock.Mock }

func (m *mockChat) HandleTurn(ctx context.Context, turn chat.Turn) (*chat.Reply, error) {
	args := m.Called(ctx, turn)
	r, _ := args.Get(0).(*chat.Reply)
	return r, args.Error(1)
}

func (m *mockChat) InitSession(ctx context.Context, sessionID string, u *user.User) (string, error) {
	args := m.Called(ctx, sessionID, u)
	return args.String(0), args.Error(1)
}

func (m *mockChat) History(ctx context.Context, sessionID string, u *user.User) ([]*domainchat.Message, error) {
	args := m.Called(ctx, sessionID, u)
	msgs, _ := args.Get(0).([]*domainchat.Message)
	return msgs, args.Error(1)
}

func (m *mockChat) Sessions(ctx context.Context, u *user.User) ([]*domainchat.Session, error) {
	args := m.Called(ctx, u)
	s, _ := args.Get(0).([]*domainchat.Session)
	return s, args.Error(1)
}

// stubAdvisor echoes the kind and snapshot it was asked for.
type stubAdvisor struct {
	now   time.Time
	kinds []advisory.Kind
	snaps []advisory.Snapshot
}

func (s *stubAdvisor) Now() time.Time { return s.now }

func (s *stubAdvisor) Recommend(_ context.Context, kind advisory.Kind, snap advisory.Snapshot) advisory.Result {
	s.kinds = append(s.kinds, kind)
	s.snaps = append(s.snaps, snap)
	return advisory.Result{
		Kind:        kind,
		Fields:      map[string]any{"price": "₹ 2,150", "trend": "up"},
		Source:      advisory.SourceFallback,
		GeneratedAt: s.now,
	}
}

type env struct {
	users    *mockUsers
	chat     *mockChat
	advisor  *stubAdvisor
	tokens   *security.TokenService
	audit    *security.AuditLogger
	sessions *session.Store
	router   chi.Router
	farmer   *user.User
	logger   *zap.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cache := memory.NewCacheRepository()
	t.Cleanup(func() { _ = cache.Close() })

	e := &env{
		users:    &mockUsers{},
		chat:     &mockChat{},
		advisor:  &stubAdvisor{now: time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)},
		tokens:   security.NewTokenService("test-secret", time.Hour, cache, logger),
		audit:    security.NewAuditLogger(logger, cache, time.Minute),
		sessions: session.NewStore(cache, config.AuthConfig{SessionCookie: "sid", SessionTTL: time.Hour}, logger),
		farmer:   testutils.NewFarmerFactory(7).FarmerWithProfile(t),
		logger:   logger,
	}

	auth := NewAuthHandlers(e.users, e.tokens, e.sessions, e.audit, logger)
	profile := NewProfileHandlers(e.users, e.sessions, logger)
	lang := NewLanguageHandlers(e.users, e.sessions, 365*24*time.Hour, false, logger)
	advice := NewAdvisoryHandlers(e.advisor, logger)
	chats := NewChatHandlers(e.chat, e.sessions, logger)
	ref := NewReferenceHandlers(geo.Fallback(), nil, logger)

	r := chi.NewRouter()
	r.Post("/signup", auth.Signup)
	r.Post("/login", auth.Login)
	r.Post("/logout", auth.Logout)
	r.Get("/check-auth", auth.CheckAuth)
	r.Post("/save-profile", profile.SaveProfile)
	r.Get("/user/data", profile.GetUserData)
	r.Post("/api/voice/settings", profile.UpdateVoiceSettings)
	r.Get("/api/languages", lang.ListLanguages)
	r.Post("/api/set-language", lang.SetLanguage)
	r.Post("/api/set-guest-language", lang.SetGuestLanguage)
	r.Get("/api/detect-language", lang.DetectLanguage)
	r.Post("/api/personalized-market", advice.PersonalizedMarket)
	r.Post("/api/fertilizer-recommendation", advice.FertilizerRecommendation)
	r.Get("/api/quick-recommendations", advice.QuickRecommendations)
	r.Get("/api/task-recommendation/{taskType}", advice.TaskRecommendation)
	r.Post("/chat/init", chats.InitChat)
	r.Post("/chat", chats.Chat)
	r.Get("/chat/{sessionID}/messages", chats.Messages)
	r.Get("/states-districts.json", ref.StatesDistricts)
	r.Get("/dashboard-data", ref.DashboardData)
	e.router = r
	return e
}

// do serves a request with the context the middleware chain would set up.
func (e *env) do(t *testing.T, req *http.Request, as *user.User, claims *security.Claims) *httptest.ResponseRecorder {
	t.Helper()
	ctx := session.NewContext(req.Context(), session.New())
	if as != nil {
		ctx = middleware.WithIdentity(ctx, middleware.Identity{User: as, Claims: claims})
	}
	ctx = middleware.WithLanguage(ctx, language.Resolution{Code: language.Telugu, Source: language.SourceSession})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestSignup(t *testing.T) {
	t.Run("creates farmer with browser language and logs in", func(t *testing.T) {
		e := newEnv(t)
		e.users.On("Register", mock.Anything, mock.MatchedBy(func(cmd usersvc.RegisterCommand) bool {
			return cmd.Username == "ramesh" && cmd.Language == language.Hindi && cmd.State == "Telangana"
		})).Return(e.farmer, nil)

		req := jsonRequest(http.MethodPost, "/signup",
			`{"username":"ramesh","email":"ramesh@example.com","password":"kharif-2024","state":"Telangana","district":"Hyderabad"}`)
		req.Header.Set("Accept-Language", "hi-IN,hi;q=0.9,en;q=0.8")
		rec := e.do(t, req, nil, nil)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Account created successfully!", body["message"])
		assert.Equal(t, "hi", body["detected_language"])
		assert.NotEmpty(t, body["access_token"])
		assert.NotNil(t, findCookie(rec, "sid"), "signup must start a session")
		e.users.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		e := newEnv(t)

		rec := e.do(t, jsonRequest(http.MethodPost, "/signup", `{"username":"ramesh"}`), nil, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing required fields: email, password", decodeBody(t, rec)["message"])
		e.users.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("no body", func(t *testing.T) {
		e := newEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodPost, "/signup", nil), nil, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No data provided", decodeBody(t, rec)["error"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		e := newEnv(t)
		e.users.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewEmailAlreadyExistsError("ramesh@example.com"))

		rec := e.do(t, jsonRequest(http.MethodPost, "/signup",
			`{"username":"ramesh","email":"ramesh@example.com","password":"kharif-2024"}`), nil, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already registered", decodeBody(t, rec)["error"])
	})
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "bad credentials", err: apperrors.NewInvalidCredentialsError(), wantStatus: http.StatusUnauthorized, wantError: "Invalid email or password"},
		{name: "inactive account", err: apperrors.NewAccountInactiveError(), wantStatus: http.StatusBadRequest, wantError: "Account is deactivated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.users.On("Authenticate", mock.Anything, "ramesh@example.com", "wrong").Return(nil, tt.err)

			rec := e.do(t, jsonRequest(http.MethodPost, "/login", `{"email":"ramesh@example.com","password":"wrong"}`), nil, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
			assert.Equal(t, 1, e.audit.FailedAttempts(context.Background(), "192.0.2.1"), "httptest client address")
		})
	}

	t.Run("success issues a usable token", func(t *testing.T) {
		e := newEnv(t)
		e.users.On("Authenticate", mock.Anything, e.farmer.Email(), testutils.DefaultPassword).Return(e.farmer, nil)

		rec := e.do(t, jsonRequest(http.MethodPost, "/login",
			`{"email":"`+e.farmer.Email()+`","password":"`+testutils.DefaultPassword+`"}`), nil, nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "Login successful!", body["message"])

		claims, err := e.tokens.Validate(context.Background(), body["access_token"].(string))
		require.NoError(t, err)
		assert.Equal(t, e.farmer.ID().String(), claims.UserID)
	})
}

func TestLogout_RevokesBearerToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token, _, err := e.tokens.Issue(e.farmer.ID(), e.farmer.Username())
	require.NoError(t, err)
	claims, err := e.tokens.Validate(ctx, token)
	require.NoError(t, err)

	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), e.farmer, claims)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decodeBody(t, rec)["message"])
	_, err = e.tokens.Validate(ctx, token)
	assert.ErrorIs(t, err, security.ErrTokenRevoked)
}

func TestCheckAuth(t *testing.T) {
	e := newEnv(t)

	guest := decodeBody(t, e.do(t, httptest.NewRequest(http.MethodGet, "/check-auth", nil), nil, nil))
	assert.Equal(t, false, guest["authenticated"])
	assert.Equal(t, "te", guest["guest_language"])

	farmer := decodeBody(t, e.do(t, httptest.NewRequest(http.MethodGet, "/check-auth", nil), e.farmer, nil))
	assert.Equal(t, true, farmer["authenticated"])
	assert.Equal(t, e.farmer.Username(), farmer["user"].(map[string]interface{})["username"])
}

func TestSetGuestLanguage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "supported code", body: `{"language":"ta"}`, want: "ta"},
		{name: "unsupported code falls back to English", body: `{"language":"fr"}`, want: "en"},
		{name: "missing body", body: ``, want: "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			rec := e.do(t, jsonRequest(http.MethodPost, "/api/set-guest-language", tt.body), nil, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.want, body["language"])
			assert.Equal(t, true, body["is_guest"])

			cookie := findCookie(rec, middleware.LanguageCookie)
			require.NotNil(t, cookie)
			assert.Equal(t, tt.want, cookie.Value)
			assert.Equal(t, 31536000, cookie.MaxAge)
			assert.Equal(t, "/", cookie.Path)
			assert.False(t, cookie.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		})
	}
}

func TestSetLanguage(t *testing.T) {
	t.Run("invalid code", func(t *testing.T) {
		e := newEnv(t)
		e.users.On("SetLanguage", mock.Anything, e.farmer.ID(), "xx").Return(nil, apperrors.NewUnsupportedLanguageError("xx"))

		rec := e.do(t, jsonRequest(http.MethodPost, "/api/set-language", `{"language":"xx"}`), e.farmer, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid language", decodeBody(t, rec)["error"])
	})

	t.Run("stores on profile and session", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.farmer.SetPreferredLanguage(language.Bengali))
		e.users.On("SetLanguage", mock.Anything, e.farmer.ID(), "bn").Return(e.farmer, nil)

		rec := e.do(t, jsonRequest(http.MethodPost, "/api/set-language", `{"language":"bn"}`), e.farmer, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bn", decodeBody(t, rec)["language"])

		cookie := findCookie(rec, "sid")
		require.NotNil(t, cookie)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		assert.Equal(t, "bn", e.sessions.Load(req).Language)
	})
}

func TestDetectLanguage(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/detect-language", nil)
	req.Header.Set("Accept-Language", "ta-IN,en;q=0.5")
	body := decodeBody(t, e.do(t, req, nil, nil))

	suggestion := body["suggestion"].(map[string]interface{})
	assert.Equal(t, "ta", suggestion["detected"])
	assert.Equal(t, "high", suggestion["confidence"])
	assert.Equal(t, "te", body["current_language"])
}

func TestListLanguages(t *testing.T) {
	e := newEnv(t)

	body := decodeBody(t, e.do(t, httptest.NewRequest(http.MethodGet, "/api/languages", nil), nil, nil))

	langs := body["languages"].([]interface{})
	require.Len(t, langs, 6)
	assert.Equal(t, "en", langs[0].(map[string]interface{})["code"])
}

func TestSaveProfile_MapsPartialUpdate(t *testing.T) {
	e := newEnv(t)
	e.users.On("UpdateProfile", mock.Anything, e.farmer.ID(), mock.MatchedBy(func(u user.ProfileUpdate) bool {
		return u.State == nil &&
			u.District != nil && *u.District == "Warangal" &&
			u.FarmSize != nil && *u.FarmSize == 12.5 &&
			u.PreferredLanguage == nil &&
			u.VoiceEnabled != nil && !*u.VoiceEnabled
	})).Return(e.farmer, nil)

	rec := e.do(t, jsonRequest(http.MethodPost, "/save-profile",
		`{"state":"  ","district":"Warangal","farm_size":"12.5","preferred_language":"","voice_enabled":false}`), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Profile saved successfully", decodeBody(t, rec)["message"])
	e.users.AssertExpectations(t)
}

func TestLenientFloat(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{raw: `{"farm_size": 4}`, want: ptr(4.0)},
		{raw: `{"farm_size": "2.5"}`, want: ptr(2.5)},
		{raw: `{"farm_size": "lots"}`, want: nil},
		{raw: `{"farm_size": null}`, want: nil},
		{raw: `{}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var req SaveProfileRequest
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			assert.Equal(t, tt.want, req.FarmSize.Value)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestUpdateVoiceSettings_DefaultsToEnabled(t *testing.T) {
	e := newEnv(t)
	e.users.On("SetVoice", mock.Anything, e.farmer.ID(), true).Return(e.farmer, nil)

	rec := e.do(t, jsonRequest(http.MethodPost, "/api/voice/settings", `{}`), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Voice settings updated", decodeBody(t, rec)["message"])
	e.users.AssertExpectations(t)
}

func TestGetUserData(t *testing.T) {
	e := newEnv(t)

	body := decodeBody(t, e.do(t, httptest.NewRequest(http.MethodGet, "/user/data", nil), e.farmer, nil))

	data := body["user"].(map[string]interface{})
	assert.Equal(t, e.farmer.ID().String(), data["id"])
	assert.Equal(t, "Hyderabad", data["district"])
	assert.NotContains(t, data, "latitude")
}

func TestPersonalizedMarket_AppliesOverrides(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, jsonRequest(http.MethodPost, "/api/personalized-market", `{"primary_crop":"Wheat","district":"Nalgonda"}`), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, e.advisor.snaps, 1)
	snap := e.advisor.snaps[0]
	assert.Equal(t, advisory.KindMarket, e.advisor.kinds[0])
	assert.Equal(t, "Wheat", snap.PrimaryCrop)
	assert.Equal(t, "Telangana", snap.State)
	assert.Equal(t, "Nalgonda", snap.District)
	assert.Equal(t, language.Telugu, snap.Language)

	body := decodeBody(t, rec)
	market := body["market_data"].(map[string]interface{})
	assert.Equal(t, "₹ 2,150", market["price"])
	assert.Equal(t, "Telangana, Nalgonda", market["user_location"])
	assert.Equal(t, "2024-07-15T09:00:00Z", market["timestamp"])
}

func TestFertilizerRecommendation_WithoutBody(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/api/fertilizer-recommendation", nil), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []advisory.Kind{advisory.KindFertilizer}, e.advisor.kinds)
	assert.Equal(t, e.farmer.Profile().PrimaryCrop, e.advisor.snaps[0].PrimaryCrop)
}

func TestQuickRecommendations(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/quick-recommendations", nil), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []advisory.Kind{advisory.KindQuickMarket, advisory.KindQuickFertilizer}, e.advisor.kinds)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "market")
	assert.Contains(t, body, "fertilizer")
}

func TestTaskRecommendation(t *testing.T) {
	t.Run("unknown task", func(t *testing.T) {
		e := newEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/task-recommendation/weeding", nil), e.farmer, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid task type", decodeBody(t, rec)["message"])
		assert.Empty(t, e.advisor.kinds, "pipeline must not run")
	})

	t.Run("known task", func(t *testing.T) {
		e := newEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/task-recommendation/irrigation", nil), e.farmer, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []advisory.Kind{advisory.TaskKind(advisory.TaskIrrigation)}, e.advisor.kinds)
		assert.Equal(t, "irrigation", decodeBody(t, rec)["task_type"])
	})
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing message", body: `{"session_id":"s-1"}`, want: "Message is required"},
		{name: "blank message", body: `{"message":"   ","session_id":"s-1"}`, want: "Message is required"},
		{name: "missing session", body: `{"message":"When to sow?"}`, want: "Session ID is required"},
		{name: "session longer than column", body: `{"message":"When to sow?","session_id":"` + strings.Repeat("s", 101) + `"}`, want: "session_id must be at most 100 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			rec := e.do(t, jsonRequest(http.MethodPost, "/chat", tt.body), nil, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec)["message"])
			e.chat.AssertNotCalled(t, "HandleTurn", mock.Anything, mock.Anything)
		})
	}
}

func TestChat_PassesLanguageAndIdentity(t *testing.T) {
	e := newEnv(t)
	e.chat.On("HandleTurn", mock.Anything, mock.MatchedBy(func(turn chat.Turn) bool {
		return turn.SessionID == "s-1" && turn.User == e.farmer && turn.Language == language.Telugu
	})).Return(&chat.Reply{SessionID: "s-1", Text: "Sow after the first rains.", Language: language.Telugu, Saved: true}, nil)

	rec := e.do(t, jsonRequest(http.MethodPost, "/chat", `{"message":"When to sow?","session_id":"s-1"}`), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Sow after the first rains.", body["reply"])
	assert.Equal(t, true, body["saved_to_db"])
	assert.Equal(t, "te", body["user_language"])
	assert.NotContains(t, body, "degraded")
}

func TestChat_DegradedReply(t *testing.T) {
	e := newEnv(t)
	e.chat.On("HandleTurn", mock.Anything, mock.Anything).
		Return(&chat.Reply{SessionID: "s-1", Text: chat.ApologyReply, Language: language.Telugu, Saved: true, Degraded: true}, nil)

	rec := e.do(t, jsonRequest(http.MethodPost, "/chat", `{"message":"hello","session_id":"s-1"}`), nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, chat.ApologyReply, body["reply"])
	assert.Equal(t, false, body["saved_to_db"])
	assert.Equal(t, true, body["degraded"])
}

func TestInitChat_Guest(t *testing.T) {
	e := newEnv(t)
	e.chat.On("InitSession", mock.Anything, "", (*user.User)(nil)).Return("generated-id", nil)

	rec := e.do(t, jsonRequest(http.MethodPost, "/chat/init", `{}`), nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "generated-id", body["session_id"])
	assert.Equal(t, false, body["user_authenticated"])
}

func TestMessages(t *testing.T) {
	e := newEnv(t)
	owner := e.farmer.ID()
	at := time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)
	e.chat.On("History", mock.Anything, "s-9", e.farmer).Return([]*domainchat.Message{
		testutils.Message(t, "s-9", &owner, domainchat.RoleUser, "Which fertilizer?", at),
		testutils.Message(t, "s-9", &owner, domainchat.RoleAssistant, "Use DAP at sowing.", at.Add(time.Second)),
	}, nil)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/chat/s-9/messages", nil), e.farmer, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, true, body["user_authenticated"])
}

func TestStatesDistricts(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/states-districts.json", nil), nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got["Telangana"], "Hyderabad")
}

func TestDashboardData_Guest(t *testing.T) {
	e := newEnv(t)

	body := decodeBody(t, e.do(t, httptest.NewRequest(http.MethodGet, "/dashboard-data", nil), nil, nil))

	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["authenticated"])
}
