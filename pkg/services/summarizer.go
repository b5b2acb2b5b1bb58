package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/prompts"
)

// NoResultsResponse is the fixed phrase for empty result sets. Stable by
// design so clients and tests can rely on it, and cheap because it skips
// the model call.
const NoResultsResponse = "No matching records were found for your question."

const maxSuggestions = 3

// SummarizerService turns execution results into a natural-language answer
// plus follow-up suggestions.
type SummarizerService struct {
	chat            llm.Client
	summaryRowLimit int
	logger          *zap.Logger
}

// NewSummarizerService creates a result summarizer. summaryRowLimit bounds
// how many rows reach the prompt, independent of the execution row cap.
func NewSummarizerService(chat llm.Client, summaryRowLimit int, logger *zap.Logger) *SummarizerService {
	return &SummarizerService{
		chat:            chat,
		summaryRowLimit: summaryRowLimit,
		logger:          logger.Named("summarizer"),
	}
}

// Summarize renders result into prose answering question. Empty results
// return the fixed no-results phrase without calling the model.
func (s *SummarizerService) Summarize(ctx context.Context, question, sqlText string, result *models.ExecutionResult) (string, []string, error) {
	if result.RowCount == 0 {
		return NoResultsResponse, nil, nil
	}

	shown := result.Rows
	if len(shown) > s.summaryRowLimit {
		shown = shown[:s.summaryRowLimit]
	}

	rowsJSON, err := json.Marshal(shown)
	if err != nil {
		return "", nil, fmt.Errorf("marshal result rows: %w", err)
	}

	prompt, system := prompts.ResultSummary(question, sqlText, string(rowsJSON),
		result.RowCount, len(shown), result.Truncated)

	raw, err := s.chat.GenerateResponse(ctx, prompt, system, 0.3)
	if err != nil {
		return "", nil, fmt.Errorf("summarize results: %w", err)
	}

	summary, suggestions := prompts.ParseSuggestions(raw, maxSuggestions)
	if summary == "" {
		return "", nil, fmt.Errorf("model returned empty summary")
	}

	s.logger.Debug("summary produced",
		zap.Int("rows_shown", len(shown)),
		zap.Int("suggestions", len(suggestions)))
	return summary, suggestions, nil
}
