package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/application/chat"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// ChatHandlers serves the advisory chat
type ChatHandlers struct {
	chat     ChatService
	sessions *session.Store
	logger   *zap.Logger
}

// NewChatHandlers creates new chat handlers
func NewChatHandlers(chat ChatService, sessions *session.Store, logger *zap.Logger) *ChatHandlers {
	return &ChatHandlers{
		chat:     chat,
		sessions: sessions,
		logger:   logger.Named("chat-handlers"),
	}
}

// InitChatRequest optionally names the chat session to resume.
type InitChatRequest struct {
	SessionID string `json:"session_id" validate:"max=100"`
}

// ChatRequest is one user message.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id" validate:"max=100"`
}

// ChatResponse is the answer to one message.
type ChatResponse struct {
	Success      bool   `json:"success"`
	Reply        string `json:"reply"`
	SessionID    string `json:"session_id"`
	SavedToDB    bool   `json:"saved_to_db"`
	UserLanguage string `json:"user_language"`
	Degraded     bool   `json:"degraded,omitempty"`
}

// InitChat handles POST /chat/init
func (h *ChatHandlers) InitChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InitChatRequest
	if err := render.DecodeOptional(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	farmer := middleware.CurrentUser(ctx)
	sessionID, err := h.chat.InitSession(ctx, req.SessionID, farmer)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	if middleware.TokenClaims(ctx) == nil {
		sess := session.FromContext(ctx)
		sess.ChatSessionID = sessionID
		if err := h.sessions.Save(ctx, w, sess); err != nil {
			h.logger.Warn("Failed to remember chat session", zap.Error(err))
		}
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"session_id":         sessionID,
		"user_authenticated": farmer != nil,
		"message":            "Chat session initialized",
	})
}

// Chat handles POST /chat
func (h *ChatHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := render.Decode(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		render.Error(w, r, h.logger, apperrors.NewValidationError("Message is required"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		render.Error(w, r, h.logger, apperrors.NewValidationError("Session ID is required"))
		return
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	reply, err := h.chat.HandleTurn(ctx, chat.Turn{
		SessionID: req.SessionID,
		User:      middleware.CurrentUser(ctx),
		Message:   req.Message,
		Language:  middleware.Language(ctx).Code,
	})
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, ChatResponse{
		Success:      true,
		Reply:        reply.Text,
		SessionID:    reply.SessionID,
		SavedToDB:    reply.Saved && !reply.Degraded,
		UserLanguage: string(reply.Language),
		Degraded:     reply.Degraded,
	})
}

// Messages handles GET /chat/{sessionID}/messages
func (h *ChatHandlers) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	farmer := middleware.CurrentUser(ctx)

	messages, err := h.chat.History(ctx, sessionID, farmer)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"messages":           toMessages(messages),
		"session_id":         sessionID,
		"user_authenticated": farmer != nil,
	})
}

// Sessions handles GET /user/chat-sessions
func (h *ChatHandlers) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chat.Sessions(r.Context(), middleware.CurrentUser(r.Context()))
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": toSessions(sessions),
	})
}
