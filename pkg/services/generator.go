package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/prompts"
	"github.com/crewquery/engine/pkg/schema"
)

// GeneratorService produces candidate SQL statements. First attempts use the
// generation prompt; retries use the correction prompt carrying the previous
// failure. The service never retries on its own.
type GeneratorService struct {
	chat     llm.Client
	fewShot  string
	rowLimit int
	logger   *zap.Logger
}

// NewGeneratorService creates a SQL generator. fewShot is the rendered
// few-shot example block, possibly empty.
func NewGeneratorService(chat llm.Client, fewShot []prompts.FewShotExample, rowLimit int, logger *zap.Logger) *GeneratorService {
	return &GeneratorService{
		chat:     chat,
		fewShot:  prompts.FormatFewShot(fewShot),
		rowLimit: rowLimit,
		logger:   logger.Named("generator"),
	}
}

// Generate produces a first-attempt statement for the question over the
// retrieved schema entries.
func (s *GeneratorService) Generate(ctx context.Context, question string, entries []models.SchemaEntry) (string, error) {
	prompt, system := prompts.SQLGeneration(question, schema.FormatEntries(entries), s.fewShot, s.rowLimit)
	return s.call(ctx, prompt, system)
}

// Correct produces a replacement statement given the failed SQL and the
// error it produced.
func (s *GeneratorService) Correct(ctx context.Context, question, failedSQL, errorMessage string, entries []models.SchemaEntry) (string, error) {
	prompt, system := prompts.SQLCorrection(question, failedSQL, errorMessage, schema.FormatEntries(entries), s.rowLimit)
	return s.call(ctx, prompt, system)
}

func (s *GeneratorService) call(ctx context.Context, prompt, system string) (string, error) {
	raw, err := s.chat.GenerateResponse(ctx, prompt, system, 0)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	sqlText := llm.StripSQLFences(raw)
	if strings.TrimSpace(sqlText) == "" {
		return "", fmt.Errorf("model returned empty statement")
	}

	s.logger.Debug("generated candidate", zap.String("sql", logging.SanitizeQuery(sqlText)))
	return sqlText, nil
}
