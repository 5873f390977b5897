package handlers

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	usersvc "github.com/smartcrop/advisor/internal/application/user"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
)

// AuthHandlers handles signup, login and logout
type AuthHandlers struct {
	users    UserService
	tokens   TokenIssuer
	sessions *session.Store
	audit    AuthAuditor
	logger   *zap.Logger
}

// NewAuthHandlers creates new authentication handlers
func NewAuthHandlers(users UserService, tokens TokenIssuer, sessions *session.Store, audit AuthAuditor, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		audit:    audit,
		logger:   logger.Named("auth-handlers"),
	}
}

// SignupRequest represents a farmer registration request. Lengths and
// formats are checked by the account rules.
type SignupRequest struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	State       string `json:"state" validate:"max=100"`
	District    string `json:"district" validate:"max=100"`
	PrimaryCrop string `json:"primary_crop" validate:"max=100"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login. The access token serves
// API clients; browsers use the session cookie.
type AuthResponse struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	User             *UserResponse `json:"user"`
	DetectedLanguage language.Code `json:"detected_language,omitempty"`
	AccessToken      string        `json:"access_token,omitempty"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
}

// Signup handles POST /signup
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := render.Decode(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	detected, ok := language.Negotiate(r.Header.Get("Accept-Language"))
	if !ok {
		detected = language.Default
	}

	farmer, err := h.users.Register(r.Context(), usersvc.RegisterCommand{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		State:       req.State,
		District:    req.District,
		PrimaryCrop: req.PrimaryCrop,
		Language:    detected,
	})
	if err != nil {
		h.record(r, security.ActionSignup, req.Email, nil, err)
		render.Error(w, r, h.logger, err)
		return
	}
	h.record(r, security.ActionSignup, req.Email, farmer, nil)

	resp, err := h.login(w, r, farmer, detected)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	resp.Message = "Account created successfully!"
	resp.DetectedLanguage = detected
	render.JSON(w, http.StatusCreated, resp)
}

// Login handles POST /login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.Decode(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	farmer, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	h.record(r, security.ActionLogin, req.Email, farmer, err)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	resp, err := h.login(w, r, farmer, farmer.PreferredLanguage())
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	resp.Message = "Login successful!"
	render.JSON(w, http.StatusOK, resp)
}

// login binds the farmer to a fresh session and issues an access token.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request, farmer *user.User, lang language.Code) (*AuthResponse, error) {
	if !language.IsSupported(string(lang)) {
		lang = language.Default
	}

	sess := session.FromContext(r.Context())
	sess.Regenerate()
	sess.UserID = farmer.ID().String()
	sess.Language = string(lang)
	sess.IsGuest = false
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		return nil, err
	}

	token, expiresAt, err := h.tokens.Issue(farmer.ID(), farmer.Username())
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Success:     true,
		User:        toUserResponse(farmer),
		AccessToken: token,
		ExpiresAt:   &expiresAt,
	}, nil
}

// Logout handles POST /logout. The session keeps its language so the
// visitor continues as a guest in the same language.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if claims := middleware.TokenClaims(ctx); claims != nil {
		if err := h.tokens.Revoke(ctx, claims); err != nil {
			render.Error(w, r, h.logger, err)
			return
		}
	}

	sess := session.FromContext(ctx)
	h.record(r, security.ActionLogout, "", middleware.CurrentUser(ctx), nil)
	lang := sess.Language
	sess.Clear()
	sess.Regenerate()
	sess.Language = lang
	if err := h.sessions.Save(ctx, w, sess); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, render.Envelope{Success: true, Message: "Logged out successfully"})
}

func (h *AuthHandlers) record(r *http.Request, action, email string, farmer *user.User, err error) {
	ev := security.AuthEvent{
		Action:    action,
		Email:     email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   err == nil,
	}
	if farmer != nil {
		ev.UserID = farmer.ID().String()
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	h.audit.LogAuthentication(r.Context(), ev)
}

// clientIP returns the caller address without its port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// CheckAuthResponse reports whether the caller is logged in.
type CheckAuthResponse struct {
	Success       bool          `json:"success"`
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
	GuestLanguage language.Code `json:"guest_language,omitempty"`
}

// CheckAuth handles GET /check-auth
func (h *AuthHandlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	if u := middleware.CurrentUser(r.Context()); u != nil {
		render.JSON(w, http.StatusOK, CheckAuthResponse{Success: true, Authenticated: true, User: toUserResponse(u)})
		return
	}
	render.JSON(w, http.StatusOK, CheckAuthResponse{
		Success:       true,
		GuestLanguage: middleware.Language(r.Context()).Code,
	})
}
