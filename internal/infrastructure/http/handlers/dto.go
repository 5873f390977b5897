package handlers

import (
	"time"

	domainchat "github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// UserResponse is the farmer representation returned by the API.
type UserResponse struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PreferredLanguage string     `json:"preferred_language"`
	VoiceEnabled      bool       `json:"voice_enabled"`
	State             string     `json:"state"`
	District          string     `json:"district"`
	FarmSize          *float64   `json:"farm_size"`
	PrimaryCrop       string     `json:"primary_crop"`
	SoilType          string     `json:"soil_type"`
	IrrigationType    string     `json:"irrigation_type"`
	ProfileCompleted  bool       `json:"profile_completed"`
	Latitude          *float64   `json:"latitude"`
	Longitude         *float64   `json:"longitude"`
	LastWeatherFetch  *time.Time `json:"last_weather_fetch"`
	IsActive          bool       `json:"is_active"`
}

func toUserResponse(u *user.User) *UserResponse {
	p := u.Profile()
	resp := &UserResponse{
		ID:                u.ID().String(),
		Username:          u.Username(),
		Email:             u.Email(),
		PreferredLanguage: string(u.PreferredLanguage()),
		VoiceEnabled:      u.VoiceEnabled(),
		State:             p.State,
		District:          p.District,
		PrimaryCrop:       p.PrimaryCrop,
		SoilType:          p.SoilType,
		IrrigationType:    p.IrrigationType,
		ProfileCompleted:  u.ProfileCompleted(),
		LastWeatherFetch:  u.LastWeatherFetch(),
		IsActive:          u.IsActive(),
	}
	if p.FarmSize > 0 {
		size := p.FarmSize
		resp.FarmSize = &size
	}
	if p.Location != nil {
		lat, lon := p.Location.Latitude, p.Location.Longitude
		resp.Latitude, resp.Longitude = &lat, &lon
	}
	return resp
}

// MessageResponse is one stored chat message.
type MessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	WasSpoken bool      `json:"was_spoken"`
	Timestamp time.Time `json:"timestamp"`
}

func toMessages(messages []*domainchat.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			Language:  string(m.Language),
			WasSpoken: m.WasSpoken,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// SessionResponse summarises one chat session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessions(sessions []*domainchat.Session) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			SessionID: s.SessionID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return out
}
