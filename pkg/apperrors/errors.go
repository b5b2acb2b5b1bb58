// Package apperrors defines sentinel errors shared across the engine.
package apperrors

import "errors"

var (
	// ErrCatalogUnavailable indicates the schema catalog has not been loaded.
	// Fatal for the data path; the caller should report "not ready".
	ErrCatalogUnavailable = errors.New("schema catalog unavailable")

	// ErrValidationRejected indicates a generated statement failed static
	// validation. Recoverable via the correction loop.
	ErrValidationRejected = errors.New("sql validation rejected")

	// ErrExecutionTimeout indicates a query exceeded its execution deadline.
	ErrExecutionTimeout = errors.New("query execution timeout")

	// ErrCorrectionExhausted indicates the correction loop ran out of
	// attempts without a successful execution.
	ErrCorrectionExhausted = errors.New("correction attempts exhausted")

	// ErrBackendUnavailable indicates both the primary and fallback model
	// endpoints failed.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrConversationNotFound indicates an unknown conversation identifier.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUnresolvedPlaceholder indicates a masked placeholder survived
	// unmasking. User-facing text must never carry one.
	ErrUnresolvedPlaceholder = errors.New("unresolved pii placeholder")
)
