package gorm

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/ports/outbound"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// ChatRepository implements outbound.ChatRepository using GORM
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

var _ outbound.ChatRepository = (*ChatRepository)(nil)

// SaveMessage stores the message and, for a farmer, creates or bumps the
// owning session in the same transaction.
func (r *ChatRepository) SaveMessage(ctx context.Context, m *chat.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := messageToModel(m)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		m.ID = model.ID

		if m.IsGuest() {
			return nil
		}

		var existing ChatSessionModel
		err := tx.Where("session_id = ? AND user_id = ?", m.SessionID, *m.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(sessionToModel(chat.SessionFor(m))).Error
		}
		if err != nil {
			return err
		}

		s := modelToSession(&existing)
		s.Record(m)
		return tx.Model(&existing).Updates(map[string]interface{}{
			"title":      s.Title,
			"updated_at": s.UpdatedAt.UTC(),
		}).Error
	})
	if err != nil {
		return apperrors.NewDatabaseError("save chat message", err)
	}
	return nil
}

// EnsureSession inserts s unless it already exists
func (r *ChatRepository) EnsureSession(ctx context.Context, s *chat.Session) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sessionToModel(s)).Error
	if err != nil {
		return apperrors.NewDatabaseError("create chat session", err)
	}
	return nil
}

// History returns every message of the session in send order
func (r *ChatRepository) History(ctx context.Context, sessionID string, userID *uuid.UUID) ([]*chat.Message, error) {
	var models []ChatMessageModel
	err := r.scope(ctx, sessionID, userID).
		Order("sent_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("load chat history", err)
	}
	return toMessages(models), nil
}

// RecentHistory returns the last limit messages, oldest first
func (r *ChatRepository) RecentHistory(ctx context.Context, sessionID string, userID *uuid.UUID, limit int) ([]*chat.Message, error) {
	var models []ChatMessageModel
	err := r.scope(ctx, sessionID, userID).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("load chat history", err)
	}
	slices.Reverse(models)
	return toMessages(models), nil
}

// ListSessions returns the farmer's sessions, most recent first
func (r *ChatRepository) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Session, error) {
	var models []ChatSessionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("list chat sessions", err)
	}

	sessions := make([]*chat.Session, len(models))
	for i := range models {
		sessions[i] = modelToSession(&models[i])
	}
	return sessions, nil
}

// CountSessions counts the farmer's sessions
func (r *ChatRepository) CountSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&ChatSessionModel{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, apperrors.NewDatabaseError("count chat sessions", err)
	}
	return n, nil
}

// CountMessages counts every message stored for the farmer
func (r *ChatRepository) CountMessages(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&ChatMessageModel{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, apperrors.NewDatabaseError("count chat messages", err)
	}
	return n, nil
}

// scope selects one session's messages. Guests only ever see rows with
// a NULL user.
func (r *ChatRepository) scope(ctx context.Context, sessionID string, userID *uuid.UUID) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&ChatMessageModel{}).Where("session_id = ?", sessionID)
	if userID == nil {
		return q.Where("user_id IS NULL")
	}
	return q.Where("user_id = ?", *userID)
}

func toMessages(models []ChatMessageModel) []*chat.Message {
	out := make([]*chat.Message, len(models))
	for i := range models {
		out[i] = modelToMessage(&models[i])
	}
	return out
}
