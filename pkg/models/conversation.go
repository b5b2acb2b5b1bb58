package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups an ordered sequence of turns under one identifier.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	TurnCount     int       `json:"turn_count"`
}

// Turn records one question/answer exchange. Nullable fields stay nil for
// turns that never reached the corresponding pipeline stage.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Utterance      string    `json:"utterance"`
	Rewritten      *string   `json:"rewritten_utterance,omitempty"`
	Intent         string    `json:"intent"`
	SQLQuery       *string   `json:"sql_query,omitempty"`
	ResultSummary  *string   `json:"result_summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EffectiveQuestion returns the rewritten utterance when present, otherwise
// the raw utterance. History windows feed this to the rewriter prompt.
func (t *Turn) EffectiveQuestion() string {
	if t.Rewritten != nil && *t.Rewritten != "" {
		return *t.Rewritten
	}
	return t.Utterance
}
