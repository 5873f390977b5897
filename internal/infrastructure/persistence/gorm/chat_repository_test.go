package gorm_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcrop/advisor/internal/domain/chat"
	gormrepo "github.com/smartcrop/advisor/internal/infrastructure/persistence/gorm"
	"github.com/smartcrop/advisor/test/testutils"
)

func contents(messages []*chat.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func TestChatRepository_HistoryOrderedByTimestamp(t *testing.T) {
	repo := gormrepo.NewChatRepository(testutils.SetupTestDatabase(t))
	ctx := context.Background()
	owner := uuid.New()
	base := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	// Inserted out of order.
	for _, m := range []*chat.Message{
		testutils.Message(t, "s1", &owner, chat.RoleUser, "third", base.Add(2*time.Minute)),
		testutils.Message(t, "s1", &owner, chat.RoleUser, "first", base),
		testutils.Message(t, "s1", &owner, chat.RoleAssistant, "second", base.Add(time.Minute)),
	} {
		require.NoError(t, repo.SaveMessage(ctx, m))
		assert.NotZero(t, m.ID)
	}

	history, err := repo.History(ctx, "s1", &owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, contents(history))

	recent, err := repo.RecentHistory(ctx, "s1", &owner, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, contents(recent))
}

func TestChatRepository_GuestIsolation(t *testing.T) {
	repo := gormrepo.NewChatRepository(testutils.SetupTestDatabase(t))
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now()

	require.NoError(t, repo.SaveMessage(ctx, testutils.Message(t, "shared", nil, chat.RoleUser, "guest question", now)))
	require.NoError(t, repo.SaveMessage(ctx, testutils.Message(t, "shared", &owner, chat.RoleUser, "farmer question", now)))

	guest, err := repo.History(ctx, "shared", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"guest question"}, contents(guest))
	assert.True(t, guest[0].IsGuest())

	farmer, err := repo.History(ctx, "shared", &owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"farmer question"}, contents(farmer))

	other := uuid.New()
	none, err := repo.History(ctx, "shared", &other)
	require.NoError(t, err)
	assert.Empty(t, none)

	// Guests never get a session row.
	sessions, err := repo.ListSessions(ctx, owner, 20)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestChatRepository_SessionLifecycle(t *testing.T) {
	repo := gormrepo.NewChatRepository(testutils.SetupTestDatabase(t))
	ctx := context.Background()
	owner := uuid.New()
	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.EnsureSession(ctx, chat.NewSession("s1", owner, start)))
	// Idempotent.
	require.NoError(t, repo.EnsureSession(ctx, chat.NewSession("s1", owner, start)))

	sessions, err := repo.ListSessions(ctx, owner, 20)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, chat.DefaultTitle, sessions[0].Title)

	question := "Which fertilizer should I apply to paddy during the tillering stage this season?"
	require.NoError(t, repo.SaveMessage(ctx, testutils.Message(t, "s1", &owner, chat.RoleUser, question, start.Add(time.Minute))))
	require.NoError(t, repo.SaveMessage(ctx, testutils.Message(t, "s2", &owner, chat.RoleUser, "Pest on cotton", start.Add(2*time.Minute))))

	sessions, err = repo.ListSessions(ctx, owner, 20)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].SessionID)
	assert.Equal(t, "Pest on cotton", sessions[0].Title)
	assert.Equal(t, chat.TitleFrom(question), sessions[1].Title)

	n, err := repo.CountSessions(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountMessages(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
