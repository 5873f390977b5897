// Package chat models advisory chat sessions and their messages.
package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/smartcrop/advisor/internal/domain/language"
)

// DefaultTitle is given to sessions created before any user message.
const DefaultTitle = "New Chat"

const titleLimit = 40

var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrEmptySessionID = errors.New("session_id is required")
	ErrInvalidRole    = errors.New("invalid message role")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one persisted chat turn. A nil UserID marks a guest message.
type Message struct {
	ID        uint
	SessionID string
	UserID    *uuid.UUID
	Role      Role
	Content   string
	Language  language.Code
	WasSpoken bool
	Timestamp time.Time
}

// NewMessage validates and builds a message.
func NewMessage(sessionID string, userID *uuid.UUID, role Role, content string, lang language.Code, at time.Time) (*Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return nil, ErrInvalidRole
	}
	if !language.IsSupported(string(lang)) {
		lang = language.Default
	}
	return &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Language:  lang,
		Timestamp: at,
	}, nil
}

// IsGuest reports whether the message belongs to an anonymous visitor.
func (m *Message) IsGuest() bool {
	return m.UserID == nil
}

// Session groups the messages of one authenticated conversation.
type Session struct {
	SessionID string
	UserID    uuid.UUID
	Title     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession starts an empty session with the default title.
func NewSession(sessionID string, userID uuid.UUID, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		UserID:    userID,
		Title:     DefaultTitle,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionFor creates the session implied by a first message, titled from
// its content.
func SessionFor(m *Message) *Session {
	s := NewSession(m.SessionID, *m.UserID, m.Timestamp)
	s.Title = TitleFrom(m.Content)
	return s
}

// Record bumps the session for a newly saved message and replaces the
// default title on the first user message.
func (s *Session) Record(m *Message) {
	s.UpdatedAt = m.Timestamp
	if m.Role == RoleUser && s.Title == DefaultTitle {
		s.Title = TitleFrom(m.Content)
	}
}

// TitleFrom shortens content to a session title.
func TitleFrom(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleLimit]) + "..."
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
