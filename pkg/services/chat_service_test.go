package services

import (
	"context"
	dbsql "database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crewquery/engine/pkg/config"
	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/repositories"
	"github.com/crewquery/engine/pkg/schema"
	enginesql "github.com/crewquery/engine/pkg/sql"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

const chatTestAppSchema = `
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
`

type chatFixture struct {
	svc      *ChatService
	repo     repositories.ConversationRepository
	chatMock *llm.MockClient
	fastMock *llm.MockClient
	executor *stubExecutor
	catalog  *schema.Catalog
}

// scriptedChat answers generation prompts with sql and summary prompts with
// summary, so one mock serves both pipeline stages.
func scriptedChat(sql, summary string) *llm.MockClient {
	return &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			if strings.Contains(prompt, "SUMMARY RULES") {
				return summary, nil
			}
			return sql, nil
		},
	}
}

func newChatFixture(t *testing.T, chatMock *llm.MockClient, loadCatalog bool) *chatFixture {
	t.Helper()

	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(metaTestSchemaJSON), 0o644))
	catalog := schema.NewCatalog(schemaPath, zap.NewNop())
	if loadCatalog {
		require.NoError(t, catalog.Load())
	}

	appDB, err := dbsql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { appDB.Close() })
	_, err = appDB.Exec(chatTestAppSchema)
	require.NoError(t, err)

	repo := repositories.NewConversationRepository(appDB)
	conversations := NewConversationService(repo)

	pipeline := config.PipelineConfig{
		MaxAttempts:              3,
		RowLimit:                 100,
		SummaryRowLimit:          20,
		TopK:                     5,
		FullSchemaTokenThreshold: 30000,
		ConfidenceThreshold:      0.5,
		RewriteWindow:            3,
		HistoryWindow:            5,
	}

	fastMock := &llm.MockClient{}
	executor := &stubExecutor{}

	retriever := schema.NewRetriever(catalog, nil, pipeline.FullSchemaTokenThreshold, zap.NewNop())
	generator := NewGeneratorService(chatMock, nil, pipeline.RowLimit, zap.NewNop())
	validator := enginesql.NewValidator([]string{"hr", "ops"})
	loop := NewCorrectionLoop(generator, validator, executor, pipeline.MaxAttempts, zap.NewNop())
	summarizer := NewSummarizerService(chatMock, pipeline.SummaryRowLimit, zap.NewNop())
	intents := NewIntentService(fastMock, pipeline.ConfidenceThreshold, zap.NewNop())
	rewriter := NewRewriterService(fastMock, zap.NewNop())

	svc := NewChatService(conversations, catalog, retriever, intents, rewriter,
		loop, summarizer, fastMock, pipeline, zap.NewNop())

	return &chatFixture{
		svc:      svc,
		repo:     repo,
		chatMock: chatMock,
		fastMock: fastMock,
		executor: executor,
		catalog:  catalog,
	}
}

func TestHandleMessage_GreetingNeverTouchesModels(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, true)

	result, err := f.svc.HandleMessage(context.Background(), "hi", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ResponseIntentGeneral, result.Intent)
	assert.NotEmpty(t, result.Response)
	assert.Nil(t, result.SQLQuery)
	assert.Equal(t, 0, f.chatMock.GenerateResponseCalls)
	assert.Equal(t, 0, f.fastMock.GenerateResponseCalls)
	assert.Equal(t, 0, len(f.executor.calls))
}

func TestHandleMessage_DataHappyPath(t *testing.T) {
	f := newChatFixture(t, scriptedChat(
		"SELECT employee_id, crew_role FROM hr.crew_members LIMIT 100",
		"There are 2 crew members.\nSUGGESTION: Break them down by role\nSUGGESTION: Who joined this year?\nSUGGESTION: Show their bases"), true)
	f.executor.result = &models.ExecutionResult{
		Columns:  []string{"employee_id", "crew_role"},
		Rows:     []map[string]any{{"employee_id": "E1", "crew_role": "Captain"}, {"employee_id": "E2", "crew_role": "Cabin Crew"}},
		RowCount: 2,
	}

	result, err := f.svc.HandleMessage(context.Background(), "show me all crew members", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ResponseIntentData, result.Intent)
	assert.Equal(t, "There are 2 crew members.", result.Response)
	require.NotNil(t, result.SQLQuery)
	assert.Contains(t, *result.SQLQuery, "hr.crew_members")
	require.NotNil(t, result.SQLResults)
	assert.Equal(t, 2, result.SQLResults.RowCount)
	assert.Len(t, result.Suggestions, 3)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))
	// Pattern classification: the fast model never ran.
	assert.Equal(t, 0, f.fastMock.GenerateResponseCalls)
}

func TestHandleMessage_CatalogUnavailable(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, false)

	result, err := f.svc.HandleMessage(context.Background(), "show me all crew members", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, ResponseIntentError, result.Intent)
	assert.Contains(t, result.Response, "still loading")
	require.NotNil(t, result.Error)
}

func TestHandleMessage_MetaQuestionSkipsModels(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, true)

	result, err := f.svc.HandleMessage(context.Background(), "what databases are available?", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ResponseIntentMeta, result.Intent)
	assert.Contains(t, result.Response, "2 databases")
	assert.Equal(t, 0, f.chatMock.GenerateResponseCalls)
	assert.Equal(t, 0, f.fastMock.GenerateResponseCalls)
}

func TestHandleMessage_AmbiguousAsksForClarification(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, true)
	f.fastMock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		return `{"intent": "DATA", "confidence": 0.2, "follow_up_question": "Which month do you mean?"}`, nil
	}

	result, err := f.svc.HandleMessage(context.Background(), "what about the usual numbers?", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ResponseIntentAmbiguous, result.Intent)
	require.NotNil(t, result.Clarification)
	assert.Equal(t, "Which month do you mean?", *result.Clarification)
}

func TestHandleMessage_ExhaustedLoopReportsFailure(t *testing.T) {
	// The model returns the same broken statement every time; dedup ends the
	// loop after the first failed attempt.
	f := newChatFixture(t, scriptedChat("SELECT broken FROM hr.crew_members", "unused"), true)
	f.executor.failures = map[string]error{
		"SELECT broken FROM hr.crew_members": errors.New("no such column: broken"),
	}

	result, err := f.svc.HandleMessage(context.Background(), "show me all crew members", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, ResponseIntentError, result.Intent)
	assert.Contains(t, result.Response, "rephrasing")
	require.NotNil(t, result.Error)
	// No raw internals reach the user.
	assert.NotContains(t, result.Response, "no such column")
}

func TestHandleMessage_PIIRoundTrip(t *testing.T) {
	f := newChatFixture(t, scriptedChat(
		"SELECT * FROM hr.crew_members WHERE email = '[EMAIL_1]' LIMIT 100",
		"Found the records for [EMAIL_1]."), true)
	f.executor.result = &models.ExecutionResult{
		Columns:  []string{"employee_id"},
		Rows:     []map[string]any{{"employee_id": "E1"}},
		RowCount: 1,
	}

	result, err := f.svc.HandleMessage(context.Background(),
		"find the crew records for alice@example.com", nil)
	require.NoError(t, err)

	require.True(t, result.Success)
	// The user sees the real address again.
	assert.Equal(t, "Found the records for alice@example.com.", result.Response)

	// The stored turn stays masked.
	turns, err := f.repo.RecentTurns(context.Background(), result.ConversationID, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Contains(t, turns[0].Utterance, "[EMAIL_1]")
	assert.NotContains(t, turns[0].Utterance, "alice@example.com")
	require.NotNil(t, turns[0].ResultSummary)
	assert.NotContains(t, *turns[0].ResultSummary, "alice@example.com")
}

func TestHandleMessage_MaskerScopedToRequest(t *testing.T) {
	// Each request gets its own mapping: [EMAIL_1] in the second response
	// resolves to the second message's address, and the first address is
	// gone from memory once its request completed.
	f := newChatFixture(t, scriptedChat(
		"SELECT * FROM hr.crew_members WHERE email = '[EMAIL_1]' LIMIT 100",
		"Found the records for [EMAIL_1]."), true)
	f.executor.result = &models.ExecutionResult{
		Columns:  []string{"employee_id"},
		Rows:     []map[string]any{{"employee_id": "E1"}},
		RowCount: 1,
	}

	first, err := f.svc.HandleMessage(context.Background(),
		"find the crew records for alice@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "Found the records for alice@example.com.", first.Response)

	second, err := f.svc.HandleMessage(context.Background(),
		"find the crew records for bob@example.com", &first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Found the records for bob@example.com.", second.Response)
	assert.NotContains(t, second.Response, "alice@example.com")
}

func TestHandleMessage_ConversationContinuity(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, true)

	first, err := f.svc.HandleMessage(context.Background(), "hi", nil)
	require.NoError(t, err)

	second, err := f.svc.HandleMessage(context.Background(), "thanks", &first.ConversationID)
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)

	turns, err := f.repo.RecentTurns(context.Background(), first.ConversationID, 5)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestHandleMessage_UnknownConversationStartsFresh(t *testing.T) {
	f := newChatFixture(t, &llm.MockClient{}, true)

	bogus := mustUUID(t)
	result, err := f.svc.HandleMessage(context.Background(), "hello", &bogus)
	require.NoError(t, err)

	assert.NotEqual(t, bogus, result.ConversationID)
}
