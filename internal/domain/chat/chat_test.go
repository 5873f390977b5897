package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "When should I sow paddy?", TitleFrom("  When should I sow paddy? "))

	long := strings.Repeat("धान ", 20)
	title := TitleFrom(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.Equal(t, 43, len([]rune(title)))
}

func TestNewMessage_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewMessage("", nil, RoleUser, "hello", "en", now)
	assert.ErrorIs(t, err, ErrEmptySessionID)

	_, err = NewMessage("s1", nil, RoleUser, "   ", "en", now)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewMessage("s1", nil, Role("bot"), "hello", "en", now)
	assert.ErrorIs(t, err, ErrInvalidRole)

	m, err := NewMessage("s1", nil, RoleUser, "hello", "xx", now)
	require.NoError(t, err)
	assert.True(t, m.IsGuest())
	assert.Equal(t, "en", string(m.Language))
}

func TestSession_Record(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	s := NewSession("s1", userID, start)

	reply := &Message{SessionID: "s1", UserID: &userID, Role: RoleAssistant, Content: "Namaste", Timestamp: start.Add(time.Minute)}
	s.Record(reply)
	assert.Equal(t, DefaultTitle, s.Title)

	question := &Message{SessionID: "s1", UserID: &userID, Role: RoleUser, Content: "Best fertilizer for cotton?", Timestamp: start.Add(2 * time.Minute)}
	s.Record(question)
	assert.Equal(t, "Best fertilizer for cotton?", s.Title)
	assert.Equal(t, start.Add(2*time.Minute), s.UpdatedAt)

	s.Record(&Message{Role: RoleUser, Content: "another question", Timestamp: start.Add(3 * time.Minute)})
	assert.Equal(t, "Best fertilizer for cotton?", s.Title)
}
