package gorm

import (
	"github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// FarmerToModel converts a domain user to a GORM model
func FarmerToModel(u *user.User) *FarmerModel {
	s := u.Snapshot()
	m := &FarmerModel{
		ID:                s.ID,
		Username:          s.Username,
		Email:             s.Email,
		PasswordHash:      s.PasswordHash,
		PreferredLanguage: s.PreferredLanguage,
		VoiceEnabled:      s.VoiceEnabled,
		IsActive:          s.IsActive,
		State:             s.Profile.State,
		District:          s.Profile.District,
		PrimaryCrop:       s.Profile.PrimaryCrop,
		SoilType:          s.Profile.SoilType,
		IrrigationType:    s.Profile.IrrigationType,
		ProfileCompleted:  s.ProfileCompleted,
		LastWeatherFetch:  s.LastWeatherFetch,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		LastLoginAt:       s.LastLoginAt,
	}
	if s.Profile.FarmSize > 0 {
		size := s.Profile.FarmSize
		m.FarmSize = &size
	}
	if loc := s.Profile.Location; loc != nil {
		lat, lon := loc.Latitude, loc.Longitude
		m.Latitude, m.Longitude = &lat, &lon
	}
	return m
}

// ModelToFarmer converts a GORM model back to a domain user
func ModelToFarmer(m *FarmerModel) *user.User {
	profile := user.FarmProfile{
		State:          m.State,
		District:       m.District,
		PrimaryCrop:    m.PrimaryCrop,
		SoilType:       m.SoilType,
		IrrigationType: m.IrrigationType,
	}
	if m.FarmSize != nil {
		profile.FarmSize = *m.FarmSize
	}
	if m.Latitude != nil && m.Longitude != nil {
		profile.Location = &user.Coordinates{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}

	return user.Reconstitute(user.Snapshot{
		ID:                m.ID,
		Username:          m.Username,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		IsActive:          m.IsActive,
		PreferredLanguage: m.PreferredLanguage,
		VoiceEnabled:      m.VoiceEnabled,
		Profile:           profile,
		ProfileCompleted:  m.ProfileCompleted,
		LastWeatherFetch:  m.LastWeatherFetch,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		LastLoginAt:       m.LastLoginAt,
	})
}

func messageToModel(m *chat.Message) *ChatMessageModel {
	return &ChatMessageModel{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Content:   m.Content,
		Language:  string(m.Language),
		WasSpoken: m.WasSpoken,
		SentAt:    m.Timestamp.UTC(),
	}
}

func modelToMessage(m *ChatMessageModel) *chat.Message {
	return &chat.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Role:      chat.Role(m.Role),
		Content:   m.Content,
		Language:  language.Code(m.Language),
		WasSpoken: m.WasSpoken,
		Timestamp: m.SentAt,
	}
}

func sessionToModel(s *chat.Session) *ChatSessionModel {
	return &ChatSessionModel{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		Title:     s.Title,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func modelToSession(m *ChatSessionModel) *chat.Session {
	return &chat.Session{
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Title:     m.Title,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
