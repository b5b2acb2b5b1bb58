package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/prompts"
)

// referentialMarkers are the words that signal a follow-up question leaning
// on earlier turns.
var referentialMarkers = []string{
	"it", "this", "that", "they", "them", "he", "she", "his", "her", "those", "these",
	"the same", "above", "previous", "last", "mentioned", "earlier",
}

// RewriterService turns follow-up questions into standalone ones using the
// fast model. Rewriting is best effort: any failure falls back to the
// original utterance.
type RewriterService struct {
	fast   llm.Client
	logger *zap.Logger
}

// NewRewriterService creates a follow-up rewriter.
func NewRewriterService(fast llm.Client, logger *zap.Logger) *RewriterService {
	return &RewriterService{
		fast:   fast,
		logger: logger.Named("rewriter"),
	}
}

// NeedsRewriting reports whether the utterance contains referential markers.
// Without both a marker and history, rewriting is skipped.
func NeedsRewriting(question string) bool {
	padded := " " + strings.ToLower(question) + " "
	for _, marker := range referentialMarkers {
		if strings.Contains(padded, " "+marker+" ") {
			return true
		}
	}
	return false
}

// Rewrite resolves references in question against the rendered history. The
// returned string equals question whenever rewriting cannot improve on it.
func (s *RewriterService) Rewrite(ctx context.Context, question, history string) string {
	if history == "" || !NeedsRewriting(question) {
		return question
	}

	out, err := s.fast.GenerateResponse(ctx, prompts.Rewrite(question, history), "", 0)
	if err != nil {
		s.logger.Warn("rewrite call failed, keeping original utterance",
			zap.String("error", logging.SanitizeError(err)))
		return question
	}

	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		return question
	}

	s.logger.Debug("rewrote follow-up",
		zap.String("original", logging.TruncateString(question, 120)),
		zap.String("rewritten", logging.TruncateString(rewritten, 120)))
	return rewritten
}
