package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/repositories"
)

// ConversationService manages conversations and serializes turns within one
// conversation so the rewriter always sees a consistent turn order.
type ConversationService struct {
	repo repositories.ConversationRepository

	mu    sync.Mutex
	locks map[uuid.UUID]*convLock
}

// convLock is reference-counted so idle conversations do not accumulate
// entries in the lock map for the life of the process.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// NewConversationService creates the conversation manager.
func NewConversationService(repo repositories.ConversationRepository) *ConversationService {
	return &ConversationService{
		repo:  repo,
		locks: make(map[uuid.UUID]*convLock),
	}
}

// Acquire blocks until the caller holds the given conversation's lock and
// returns the release function. Different conversations get independent
// locks and proceed fully in parallel; the lock entry is removed once the
// last holder releases it.
func (s *ConversationService) Acquire(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &convLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *ConversationService) activeLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// GetOrCreate resolves an optional conversation id. Nil or unknown ids
// start a fresh conversation.
func (s *ConversationService) GetOrCreate(ctx context.Context, id *uuid.UUID) (*models.Conversation, error) {
	if id != nil {
		conv, err := s.repo.Get(ctx, *id)
		if err == nil {
			return conv, nil
		}
	}
	return s.repo.Create(ctx)
}

// List returns recent conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	return s.repo.List(ctx, limit)
}

// History returns up to limit turns of a conversation, oldest first.
func (s *ConversationService) History(ctx context.Context, id uuid.UUID, limit int) ([]*models.Turn, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.RecentTurns(ctx, id, limit)
}

// AppendTurn persists one completed turn.
func (s *ConversationService) AppendTurn(ctx context.Context, turn *models.Turn) error {
	return s.repo.AppendTurn(ctx, turn)
}

// RenderHistory formats turns for inclusion in prompts, oldest first.
func RenderHistory(turns []*models.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "User: %s\n", t.EffectiveQuestion())
		if t.ResultSummary != nil && *t.ResultSummary != "" {
			fmt.Fprintf(&sb, "Assistant: %s\n", *t.ResultSummary)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
