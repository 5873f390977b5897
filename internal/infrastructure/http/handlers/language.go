package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
)

// LanguageHandlers serves language listing, detection and selection
type LanguageHandlers struct {
	users        UserService
	sessions     *session.Store
	cookieMaxAge time.Duration
	secure       bool
	logger       *zap.Logger
}

// NewLanguageHandlers creates new language handlers. cookieMaxAge is the
// lifetime of the guest language cookie.
func NewLanguageHandlers(users UserService, sessions *session.Store, cookieMaxAge time.Duration, secure bool, logger *zap.Logger) *LanguageHandlers {
	if cookieMaxAge <= 0 {
		cookieMaxAge = 365 * 24 * time.Hour
	}
	return &LanguageHandlers{
		users:        users,
		sessions:     sessions,
		cookieMaxAge: cookieMaxAge,
		secure:       secure,
		logger:       logger.Named("language-handlers"),
	}
}

// LanguageRequest selects a language.
type LanguageRequest struct {
	Language string `json:"language"`
}

// ListLanguages handles GET /api/languages
func (h *LanguageHandlers) ListLanguages(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"languages":        language.Supported(),
		"current_language": middleware.Language(r.Context()).Code,
	})
}

// SetLanguage handles POST /api/set-language for logged-in farmers. The
// choice is stored on the profile and in the session.
func (h *LanguageHandlers) SetLanguage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LanguageRequest
	if err := render.Decode(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	farmer, err := h.users.SetLanguage(ctx, middleware.CurrentUser(ctx).ID(), req.Language)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	code := farmer.PreferredLanguage()

	if middleware.TokenClaims(ctx) == nil {
		sess := session.FromContext(ctx)
		sess.Language = string(code)
		if err := h.sessions.Save(ctx, w, sess); err != nil {
			render.Error(w, r, h.logger, err)
			return
		}
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  fmt.Sprintf("Language updated to %s", code),
		"language": code,
		"user_id":  farmer.ID().String(),
	})
}

// SetGuestLanguage handles POST /api/set-guest-language. Unsupported codes
// fall back to English rather than failing.
func (h *LanguageHandlers) SetGuestLanguage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LanguageRequest
	if err := render.DecodeOptional(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	code, ok := language.Parse(req.Language)
	if !ok {
		code = language.Default
	}

	sess := session.FromContext(ctx)
	sess.Language = string(code)
	sess.IsGuest = true
	if err := h.sessions.Save(ctx, w, sess); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.LanguageCookie,
		Value:    string(code),
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: false,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  fmt.Sprintf("Language updated to %s", code),
		"language": code,
		"is_guest": true,
	})
}

// LanguageSuggestion is the browser-based language guess.
type LanguageSuggestion struct {
	Detected          language.Code `json:"detected"`
	Confidence        string        `json:"confidence"`
	SuggestedLanguage language.Code `json:"suggested_language"`
	Message           string        `json:"message"`
}

// DetectLanguage handles GET /api/detect-language
func (h *LanguageHandlers) DetectLanguage(w http.ResponseWriter, r *http.Request) {
	detected, ok := language.Negotiate(r.Header.Get("Accept-Language"))
	confidence := "high"
	if !ok {
		detected, confidence = language.Default, "low"
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"suggestion": LanguageSuggestion{
			Detected:          detected,
			Confidence:        confidence,
			SuggestedLanguage: detected,
			Message: fmt.Sprintf("We detected your browser language as %s. Would you like to use this language?",
				detected.Name()),
		},
		"current_language": middleware.Language(r.Context()).Code,
	})
}
