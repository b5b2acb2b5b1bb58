package models

import "time"

// ExecutionResult is the immutable outcome of a successful query execution.
// Rows are capped by the execution engine; Truncated reports whether the
// underlying result exceeded the cap.
type ExecutionResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}

// QueryAttempt is one pass through the generate-validate-execute cycle.
// Attempts live only for the duration of a correction loop run.
type QueryAttempt struct {
	Number int       `json:"number"`
	SQL    string    `json:"sql"`
	Err    string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}
