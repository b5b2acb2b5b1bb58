// Package executor runs validated statements against the attached databases.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/config"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
)

// Engine executes read-only statements over a federation of SQLite files.
// Every request gets its own connection: an in-memory database with all
// configured files attached under their aliases, closed when the request
// ends. Cross-database joins work because all aliases share one connection.
type Engine struct {
	databases []config.AttachedDatabase
	rowLimit  int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewEngine creates an execution engine for the configured databases.
func NewEngine(databases []config.AttachedDatabase, rowLimit int, timeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		databases: databases,
		rowLimit:  rowLimit,
		timeout:   timeout,
		logger:    logger.Named("executor"),
	}
}

// Aliases returns the configured database aliases.
func (e *Engine) Aliases() []string {
	out := make([]string, 0, len(e.databases))
	for _, db := range e.databases {
		out = append(out, db.Alias)
	}
	return out
}

// Execute runs one statement and returns up to the configured row limit.
// The truncation flag is set whenever more rows existed than were returned.
// Timeouts surface as ErrExecutionTimeout.
func (e *Engine) Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.open(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: statement exceeded %s", apperrors.ErrExecutionTimeout, e.timeout)
		}
		return nil, err
	}
	defer conn.Close()

	start := time.Now()
	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, e.wrapExecError(ctx, sqlText, err)
	}
	defer rows.Close()

	result, err := e.scan(ctx, rows)
	if err != nil {
		return nil, e.wrapExecError(ctx, sqlText, err)
	}

	e.logger.Debug("statement executed",
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Ping verifies all configured databases can be attached. Used by readiness.
func (e *Engine) Ping(ctx context.Context) error {
	conn, err := e.open(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// open builds the per-request federated connection.
func (e *Engine) open(ctx context.Context) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: open connection: %s", apperrors.ErrBackendUnavailable, err)
	}
	// The in-memory root database exists per connection; attachments must
	// all land on the same one.
	conn.SetMaxOpenConns(1)

	for _, db := range e.databases {
		attach := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(db.Path), quoteIdent(db.Alias))
		if _, err := conn.ExecContext(ctx, attach); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: attach %s: %s", apperrors.ErrBackendUnavailable, db.Alias, logging.SanitizeError(err))
		}
	}

	return conn, nil
}

func (e *Engine) scan(ctx context.Context, rows *sql.Rows) (*models.ExecutionResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &models.ExecutionResult{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for result.RowCount < e.rowLimit && rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}

	// One more Next tells us whether the cap cut the result short.
	if result.RowCount == e.rowLimit && rows.Next() {
		result.Truncated = true
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) wrapExecError(ctx context.Context, sqlText string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("statement timed out", zap.String("sql", logging.SanitizeQuery(sqlText)))
		return fmt.Errorf("%w: statement exceeded %s", apperrors.ErrExecutionTimeout, e.timeout)
	}
	return fmt.Errorf("execute statement: %w", err)
}

// normalizeValue converts driver types into JSON-friendly values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
