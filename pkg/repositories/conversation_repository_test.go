package repositories

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/models"
)

const testSchema = `
CREATE TABLE conversations (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_message_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    utterance TEXT NOT NULL,
    rewritten TEXT,
    intent TEXT NOT NULL,
    sql_query TEXT,
    result_summary TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_turns_conversation_created ON turns(conversation_id, created_at);
`

func newTestRepo(t *testing.T) ConversationRepository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewConversationRepository(db)
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 0, got.TurnCount)
}

func TestConversationRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)
}

func TestConversationRepository_AppendAndRecentTurns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	conv, err := repo.Create(ctx)
	require.NoError(t, err)

	sqlQuery := "SELECT count(*) FROM hr.crew_members"
	for i, utterance := range []string{"how many crew members?", "and captains?", "thanks"} {
		turn := &models.Turn{
			ConversationID: conv.ID,
			Utterance:      utterance,
			Intent:         "data",
		}
		if i == 0 {
			turn.SQLQuery = &sqlQuery
		}
		require.NoError(t, repo.AppendTurn(ctx, turn))
		assert.NotZero(t, turn.ID)
	}

	turns, err := repo.RecentTurns(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	// Oldest first within the window; the window keeps the latest turns.
	assert.Equal(t, "and captains?", turns[0].Utterance)
	assert.Equal(t, "thanks", turns[1].Utterance)

	got, err := repo.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TurnCount)
}

func TestConversationRepository_ListOrdersByActivity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx)
	require.NoError(t, err)
	second, err := repo.Create(ctx)
	require.NoError(t, err)

	// Touch the first conversation so it becomes most recent.
	require.NoError(t, repo.AppendTurn(ctx, &models.Turn{
		ConversationID: first.ID,
		Utterance:      "hello",
		Intent:         "general",
	}))

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestConversationRepository_RecentTurnsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	conv, err := repo.Create(ctx)
	require.NoError(t, err)

	turns, err := repo.RecentTurns(ctx, conv.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
