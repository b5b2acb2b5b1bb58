// Package repositories provides data access over the application store.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/models"
)

// ConversationRepository provides data access for conversations and their
// turns.
type ConversationRepository interface {
	Create(ctx context.Context) (*models.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	List(ctx context.Context, limit int) ([]*models.Conversation, error)
	AppendTurn(ctx context.Context, turn *models.Turn) error
	// RecentTurns returns up to limit turns for the conversation, oldest
	// first, so prompt history reads top to bottom.
	RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Turn, error)
}

type conversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a ConversationRepository over the
// application store.
func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) Create(ctx context.Context) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:            uuid.New(),
		CreatedAt:     time.Now().UTC(),
		LastMessageAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at, last_message_at) VALUES (?, ?, ?)`,
		conv.ID.String(), conv.CreatedAt, conv.LastMessageAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

func (r *conversationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.created_at, c.last_message_at,
		        (SELECT count(*) FROM turns t WHERE t.conversation_id = c.id)
		 FROM conversations c WHERE c.id = ?`, id.String())

	conv := &models.Conversation{}
	var rawID string
	if err := row.Scan(&rawID, &conv.CreatedAt, &conv.LastMessageAt, &conv.TurnCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q: %w", rawID, err)
	}
	conv.ID = parsed
	return conv, nil
}

func (r *conversationRepository) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.created_at, c.last_message_at,
		        (SELECT count(*) FROM turns t WHERE t.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.last_message_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		var rawID string
		if err := rows.Scan(&rawID, &conv.CreatedAt, &conv.LastMessageAt, &conv.TurnCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation id %q: %w", rawID, err)
		}
		conv.ID = parsed
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (r *conversationRepository) AppendTurn(ctx context.Context, turn *models.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, utterance, rewritten, intent, sql_query, result_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ConversationID.String(), turn.Utterance, turn.Rewritten, turn.Intent,
		turn.SQLQuery, turn.ResultSummary, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		turn.CreatedAt, turn.ConversationID.String()); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		turn.ID = id
	}
	return nil
}

func (r *conversationRepository) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, utterance, rewritten, intent, sql_query, result_summary, created_at
		 FROM (
		     SELECT * FROM turns WHERE conversation_id = ?
		     ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		conversationID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var out []*models.Turn
	for rows.Next() {
		turn := &models.Turn{}
		var rawID string
		if err := rows.Scan(&turn.ID, &rawID, &turn.Utterance, &turn.Rewritten,
			&turn.Intent, &turn.SQLQuery, &turn.ResultSummary, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation id %q: %w", rawID, err)
		}
		turn.ConversationID = parsed
		out = append(out, turn)
	}
	return out, rows.Err()
}
