package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
)

// ProfileHandlers serves the farmer's own profile
type ProfileHandlers struct {
	users    UserService
	sessions *session.Store
	logger   *zap.Logger
}

// NewProfileHandlers creates new profile handlers
func NewProfileHandlers(users UserService, sessions *session.Store, logger *zap.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		users:    users,
		sessions: sessions,
		logger:   logger.Named("profile-handlers"),
	}
}

// lenientFloat accepts a JSON number or a numeric string. Anything else
// decodes to "not given".
type lenientFloat struct {
	Value *float64
}

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	f.Value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	f.Value = &v
	return nil
}

// SaveProfileRequest is a partial profile update. Absent and empty fields
// are left unchanged.
type SaveProfileRequest struct {
	State             *string      `json:"state" validate:"omitempty,max=100"`
	District          *string      `json:"district" validate:"omitempty,max=100"`
	FarmSize          lenientFloat `json:"farm_size"`
	PrimaryCrop       *string      `json:"primary_crop" validate:"omitempty,max=100"`
	SoilType          *string      `json:"soil_type" validate:"omitempty,max=50"`
	IrrigationType    *string      `json:"irrigation_type" validate:"omitempty,max=50"`
	PreferredLanguage *string      `json:"preferred_language"`
	VoiceEnabled      *bool        `json:"voice_enabled"`
}

func (req SaveProfileRequest) update() user.ProfileUpdate {
	return user.ProfileUpdate{
		State:             trimmed(req.State),
		District:          trimmed(req.District),
		FarmSize:          req.FarmSize.Value,
		PrimaryCrop:       trimmed(req.PrimaryCrop),
		SoilType:          trimmed(req.SoilType),
		IrrigationType:    trimmed(req.IrrigationType),
		PreferredLanguage: trimmed(req.PreferredLanguage),
		VoiceEnabled:      req.VoiceEnabled,
	}
}

// trimmed returns nil for absent or blank values.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// UserEnvelope carries a farmer.
type UserEnvelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    *UserResponse `json:"user"`
}

// GetProfile handles GET /user/profile
func (h *ProfileHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, UserEnvelope{Success: true, User: toUserResponse(middleware.CurrentUser(r.Context()))})
}

// SaveProfile handles POST /save-profile
func (h *ProfileHandlers) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmer := middleware.CurrentUser(ctx)

	var req SaveProfileRequest
	if err := render.Decode(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	update := req.update()
	updated, err := h.users.UpdateProfile(ctx, farmer.ID(), update)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	if update.PreferredLanguage != nil && middleware.TokenClaims(ctx) == nil {
		sess := session.FromContext(ctx)
		sess.Language = string(updated.PreferredLanguage())
		if err := h.sessions.Save(ctx, w, sess); err != nil {
			h.logger.Warn("Failed to store session language", zap.Error(err))
		}
	}

	render.JSON(w, http.StatusOK, UserEnvelope{
		Success: true,
		Message: "Profile saved successfully",
		User:    toUserResponse(updated),
	})
}

// UserData is the compact farmer summary of GET /user/data.
type UserData struct {
	ID                string   `json:"id"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	State             string   `json:"state"`
	District          string   `json:"district"`
	FarmSize          *float64 `json:"farm_size"`
	PrimaryCrop       string   `json:"primary_crop"`
	ProfileCompleted  bool     `json:"profile_completed"`
	PreferredLanguage string   `json:"preferred_language"`
	VoiceEnabled      bool     `json:"voice_enabled"`
}

// GetUserData handles GET /user/data
func (h *ProfileHandlers) GetUserData(w http.ResponseWriter, r *http.Request) {
	full := toUserResponse(middleware.CurrentUser(r.Context()))
	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user": UserData{
			ID:                full.ID,
			Username:          full.Username,
			Email:             full.Email,
			State:             full.State,
			District:          full.District,
			FarmSize:          full.FarmSize,
			PrimaryCrop:       full.PrimaryCrop,
			ProfileCompleted:  full.ProfileCompleted,
			PreferredLanguage: full.PreferredLanguage,
			VoiceEnabled:      full.VoiceEnabled,
		},
	})
}

// VoiceSettingsRequest toggles spoken replies; omitted means enabled.
type VoiceSettingsRequest struct {
	VoiceEnabled *bool `json:"voice_enabled"`
}

// UpdateVoiceSettings handles POST /api/voice/settings
func (h *ProfileHandlers) UpdateVoiceSettings(w http.ResponseWriter, r *http.Request) {
	var req VoiceSettingsRequest
	if err := render.DecodeOptional(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	enabled := true
	if req.VoiceEnabled != nil {
		enabled = *req.VoiceEnabled
	}

	updated, err := h.users.SetVoice(r.Context(), middleware.CurrentUser(r.Context()).ID(), enabled)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Voice settings updated",
		"voice_enabled": updated.VoiceEnabled(),
	})
}
