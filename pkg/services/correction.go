package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
)

// LoopState tracks where the correction loop is in its lifecycle.
type LoopState string

const (
	StateInit       LoopState = "init"
	StateAttempting LoopState = "attempting"
	StateSucceeded  LoopState = "succeeded"
	StateExhausted  LoopState = "exhausted"
)

// SQLGenerator produces candidate statements for the loop.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, entries []models.SchemaEntry) (string, error)
	Correct(ctx context.Context, question, failedSQL, errorMessage string, entries []models.SchemaEntry) (string, error)
}

// SQLValidator statically screens candidates.
type SQLValidator interface {
	Validate(sqlText string) error
}

// SQLExecutor runs validated statements.
type SQLExecutor interface {
	Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error)
}

// LoopOutcome is the final record of one correction loop run.
type LoopOutcome struct {
	State    LoopState
	SQL      string
	Result   *models.ExecutionResult
	Attempts []models.QueryAttempt
	// LastError holds the error of the final failed attempt when the loop
	// ran out of attempts.
	LastError error
}

// CorrectionLoop drives the bounded generate-validate-execute cycle. Each
// failure feeds the next generation; a regenerated statement identical to
// any earlier attempt ends the loop immediately since retrying known-bad
// SQL cannot succeed.
type CorrectionLoop struct {
	generator   SQLGenerator
	validator   SQLValidator
	executor    SQLExecutor
	maxAttempts int
	logger      *zap.Logger
}

// NewCorrectionLoop wires the loop's stages together.
func NewCorrectionLoop(generator SQLGenerator, validator SQLValidator, executor SQLExecutor, maxAttempts int, logger *zap.Logger) *CorrectionLoop {
	return &CorrectionLoop{
		generator:   generator,
		validator:   validator,
		executor:    executor,
		maxAttempts: maxAttempts,
		logger:      logger.Named("correction"),
	}
}

// Run executes the loop for one question. The returned outcome always has
// State set to StateSucceeded or StateExhausted.
func (l *CorrectionLoop) Run(ctx context.Context, question string, entries []models.SchemaEntry) (*LoopOutcome, error) {
	outcome := &LoopOutcome{State: StateInit}
	seen := make(map[string]bool)

	var failedSQL, failedError string

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		var (
			sqlText string
			err     error
		)
		if attempt == 1 {
			sqlText, err = l.generator.Generate(ctx, question, entries)
		} else {
			sqlText, err = l.generator.Correct(ctx, question, failedSQL, failedError, entries)
		}
		if err != nil {
			// Generation failing is a backend problem, not a SQL problem;
			// feeding it back cannot help.
			return nil, err
		}
		outcome.State = StateAttempting

		normalized := normalizeSQL(sqlText)
		if seen[normalized] {
			l.logger.Warn("correction regenerated a known-bad statement, giving up",
				zap.Int("attempt", attempt),
				zap.String("sql", logging.SanitizeQuery(sqlText)))
			outcome.State = StateExhausted
			outcome.LastError = fmt.Errorf("%w: correction repeated a failed statement", apperrors.ErrCorrectionExhausted)
			return outcome, nil
		}
		seen[normalized] = true

		attemptErr := l.tryAttempt(ctx, sqlText, outcome)
		record := models.QueryAttempt{Number: attempt, SQL: sqlText, At: time.Now()}
		if attemptErr == nil {
			outcome.Attempts = append(outcome.Attempts, record)
			outcome.State = StateSucceeded
			outcome.SQL = sqlText
			l.logger.Info("statement succeeded",
				zap.Int("attempt", attempt),
				zap.Int("rows", outcome.Result.RowCount))
			return outcome, nil
		}

		record.Err = attemptErr.Error()
		outcome.Attempts = append(outcome.Attempts, record)
		l.logger.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.String("sql", logging.SanitizeQuery(sqlText)),
			zap.String("error", logging.SanitizeError(attemptErr)))

		failedSQL = sqlText
		failedError = attemptErr.Error()
		outcome.LastError = attemptErr
	}

	outcome.State = StateExhausted
	outcome.LastError = fmt.Errorf("%w after %d attempts: %s",
		apperrors.ErrCorrectionExhausted, l.maxAttempts, logging.SanitizeError(outcome.LastError))
	return outcome, nil
}

func (l *CorrectionLoop) tryAttempt(ctx context.Context, sqlText string, outcome *LoopOutcome) error {
	if err := l.validator.Validate(sqlText); err != nil {
		return err
	}

	result, err := l.executor.Execute(ctx, sqlText)
	if err != nil {
		return err
	}

	outcome.Result = result
	return nil
}

// normalizeSQL flattens whitespace and case so trivially reformatted
// statements still count as duplicates.
func normalizeSQL(sqlText string) string {
	return strings.ToLower(strings.Join(strings.Fields(sqlText), " "))
}
