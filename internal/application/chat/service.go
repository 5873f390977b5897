// Package chat runs free-text advisory conversations and keeps their
// history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/ports/outbound"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

const (
	// UnavailableReply is sent, and stored, when no provider is configured.
	UnavailableReply = "Chat functionality is currently unavailable. Please check the server configuration."
	// ApologyReply is sent when the provider call fails.
	ApologyReply = "Sorry, I could not reach the advisory service right now. Please try again in a moment."

	historyLimit  = 10
	sessionsLimit = 20
)

// Turn is one user message to answer. User is nil for guests.
type Turn struct {
	SessionID string
	User      *user.User
	Message   string
	Language  language.Code
}

// Reply is the outcome of a turn.
type Reply struct {
	SessionID string
	Text      string
	Language  language.Code
	Saved     bool
	Degraded  bool
}

// TurnRecorder observes chat turn outcomes: answered, unconfigured or
// degraded.
type TurnRecorder interface {
	RecordChatTurn(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordChatTurn(string) {}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the outcome recorder.
func WithRecorder(r TurnRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service answers chat turns.
type Service struct {
	repo        outbound.ChatRepository
	provider    outbound.CompletionProvider
	recorder    TurnRecorder
	now         func() time.Time
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewService creates a chat service. temperature and maxTokens fall back
// to 0.7 and 1024 when not positive.
func NewService(repo outbound.ChatRepository, provider outbound.CompletionProvider, temperature float64, maxTokens int, logger *zap.Logger, opts ...Option) *Service {
	if temperature <= 0 {
		temperature = 0.7
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	s := &Service{
		repo:        repo,
		provider:    provider,
		recorder:    nopRecorder{},
		now:         time.Now,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.Named("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleTurn stores the user message, asks the provider for an answer with
// the recent history as context and stores the answer.
func (s *Service) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	userID := identity(turn.User)

	question, err := chat.NewMessage(turn.SessionID, userID, chat.RoleUser, turn.Message, turn.Language, s.now())
	if err != nil {
		return nil, validationError(err)
	}

	history, err := s.repo.RecentHistory(ctx, turn.SessionID, userID, historyLimit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load chat history", err)
	}

	if err := s.repo.SaveMessage(ctx, question); err != nil {
		return nil, apperrors.NewDatabaseError("save chat message", err)
	}

	reply := &Reply{SessionID: turn.SessionID, Language: question.Language, Saved: true}

	if !s.provider.Configured() {
		reply.Text = UnavailableReply
		if err := s.saveAnswer(ctx, turn.SessionID, userID, reply.Text, question.Language); err != nil {
			return nil, err
		}
		s.recorder.RecordChatTurn("unconfigured")
		return reply, nil
	}

	messages := make([]outbound.PromptMessage, 0, len(history)+2)
	messages = append(messages, outbound.PromptMessage{Role: string(chat.RoleSystem), Content: systemInstruction(turn.User)})
	for _, m := range history {
		messages = append(messages, outbound.PromptMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, outbound.PromptMessage{Role: string(chat.RoleUser), Content: turn.Message})

	answer, err := s.provider.Complete(ctx, outbound.CompletionRequest{
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		s.logger.Warn("Chat provider call failed",
			zap.String("session_id", turn.SessionID),
			zap.Error(err),
		)
		reply.Text = ApologyReply
		reply.Degraded = true
		s.recorder.RecordChatTurn("degraded")
		return reply, nil
	}

	reply.Text = answer
	if err := s.saveAnswer(ctx, turn.SessionID, userID, answer, question.Language); err != nil {
		return nil, err
	}
	s.recorder.RecordChatTurn("answered")
	return reply, nil
}

func (s *Service) saveAnswer(ctx context.Context, sessionID string, userID *uuid.UUID, text string, lang language.Code) error {
	answer, err := chat.NewMessage(sessionID, userID, chat.RoleAssistant, text, lang, s.now())
	if err != nil {
		return apperrors.NewInternalError("Empty assistant reply").WithCause(err)
	}
	if err := s.repo.SaveMessage(ctx, answer); err != nil {
		return apperrors.NewDatabaseError("save chat reply", err)
	}
	return nil
}

// InitSession returns sessionID, or a new id when empty. For
// authenticated farmers the session row is created up front.
func (s *Service) InitSession(ctx context.Context, sessionID string, u *user.User) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = chat.NewSessionID()
	}
	if u == nil {
		return sessionID, nil
	}
	if err := s.repo.EnsureSession(ctx, chat.NewSession(sessionID, u.ID(), s.now())); err != nil {
		return "", apperrors.NewDatabaseError("create chat session", err)
	}
	return sessionID, nil
}

// History returns the messages of a session visible to u (guest when nil).
func (s *Service) History(ctx context.Context, sessionID string, u *user.User) ([]*chat.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, validationError(chat.ErrEmptySessionID)
	}
	messages, err := s.repo.History(ctx, sessionID, identity(u))
	if err != nil {
		return nil, apperrors.NewDatabaseError("load chat history", err)
	}
	return messages, nil
}

// Sessions lists the farmer's most recent sessions.
func (s *Service) Sessions(ctx context.Context, u *user.User) ([]*chat.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, u.ID(), sessionsLimit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list chat sessions", err)
	}
	return sessions, nil
}

// Stats returns the farmer's session and message counts.
func (s *Service) Stats(ctx context.Context, u *user.User) (sessions, messages int64, err error) {
	if sessions, err = s.repo.CountSessions(ctx, u.ID()); err != nil {
		return 0, 0, apperrors.NewDatabaseError("count chat sessions", err)
	}
	if messages, err = s.repo.CountMessages(ctx, u.ID()); err != nil {
		return 0, 0, apperrors.NewDatabaseError("count chat messages", err)
	}
	return sessions, messages, nil
}

func identity(u *user.User) *uuid.UUID {
	if u == nil {
		return nil
	}
	id := u.ID()
	return &id
}

func validationError(err error) error {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return apperrors.NewValidationError("Message is required")
	case errors.Is(err, chat.ErrEmptySessionID):
		return apperrors.NewValidationError("Session ID is required")
	}
	return apperrors.NewValidationError(err.Error())
}

func systemInstruction(u *user.User) string {
	var b strings.Builder
	b.WriteString("You are an agricultural expert for Indian farmers.\n")

	if u != nil {
		p := u.Profile()
		size := "Not specified"
		if p.FarmSize > 0 {
			size = strconv.FormatFloat(p.FarmSize, 'f', -1, 64)
		}
		b.WriteString("Farmer Profile:\n")
		fmt.Fprintf(&b, "- Location: %s, %s\n", or(p.State, "Unknown"), or(p.District, "Unknown"))
		fmt.Fprintf(&b, "- Crop: %s\n", or(p.PrimaryCrop, "Not specified"))
		fmt.Fprintf(&b, "- Farm Size: %s acres\n", size)
		fmt.Fprintf(&b, "- Soil: %s\n", or(p.SoilType, "Not specified"))
		fmt.Fprintf(&b, "- Irrigation: %s\n", or(p.IrrigationType, "Not specified"))
		fmt.Fprintf(&b, "- Preferred Language: %s\n", u.PreferredLanguage().Name())
		b.WriteString("Personalize your advice for this farmer. If the preferred language is not English, " +
			"you may include some phrases in that language while keeping the main answer in English.\n")
	}

	b.WriteString("Provide practical, actionable advice. Consider local conditions, cost-effectiveness and sustainability.\n")
	b.WriteString("Mention when advice is specific to the farmer's location or crop.\n")
	b.WriteString("If you don't know something, say so and suggest where to find accurate information.")
	return b.String()
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
