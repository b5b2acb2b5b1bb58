package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/logging"
)

// FailoverClient tries a primary chat client and falls back to a secondary
// on any error. When both fail the returned error wraps
// apperrors.ErrBackendUnavailable so callers can detect total outage.
// Every call carries the configured timeout so a hung backend cannot stall
// a request whose inbound context has no deadline of its own.
type FailoverClient struct {
	primary  Client
	fallback Client // may be nil
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFailoverClient wires a primary client with an optional fallback. A zero
// timeout leaves deadlines to the caller's context.
func NewFailoverClient(primary, fallback Client, timeout time.Duration, logger *zap.Logger) *FailoverClient {
	return &FailoverClient{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.Named("llm-failover"),
	}
}

// GenerateResponse implements Client.
func (c *FailoverClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, primaryErr := c.primary.GenerateResponse(ctx, prompt, systemMessage, temperature)
	if primaryErr == nil {
		return out, nil
	}

	if c.fallback == nil {
		return "", fmt.Errorf("%w: primary failed: %s", apperrors.ErrBackendUnavailable, logging.SanitizeError(primaryErr))
	}

	c.logger.Warn("primary endpoint failed, trying fallback",
		zap.String("primary", c.primary.GetEndpoint()),
		zap.String("error", logging.SanitizeError(primaryErr)))

	out, fallbackErr := c.fallback.GenerateResponse(ctx, prompt, systemMessage, temperature)
	if fallbackErr == nil {
		return out, nil
	}

	return "", fmt.Errorf("%w: primary: %s; fallback: %s",
		apperrors.ErrBackendUnavailable,
		logging.SanitizeError(primaryErr),
		logging.SanitizeError(fallbackErr))
}

// GetModel returns the primary client's model name.
func (c *FailoverClient) GetModel() string {
	return c.primary.GetModel()
}

// GetEndpoint returns the primary client's endpoint.
func (c *FailoverClient) GetEndpoint() string {
	return c.primary.GetEndpoint()
}

// FailoverEmbedder tries a primary embedder and falls back to a secondary.
type FailoverEmbedder struct {
	primary  Embedder
	fallback Embedder // may be nil
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFailoverEmbedder wires a primary embedder with an optional fallback. A
// zero timeout leaves deadlines to the caller's context.
func NewFailoverEmbedder(primary, fallback Embedder, timeout time.Duration, logger *zap.Logger) *FailoverEmbedder {
	return &FailoverEmbedder{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.Named("embed-failover"),
	}
}

// CreateEmbedding implements Embedder.
func (e *FailoverEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := e.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return out[0], nil
}

// CreateEmbeddings implements Embedder.
func (e *FailoverEmbedder) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, primaryErr := e.primary.CreateEmbeddings(ctx, inputs)
	if primaryErr == nil {
		return out, nil
	}

	if e.fallback == nil {
		return nil, fmt.Errorf("%w: primary failed: %s", apperrors.ErrBackendUnavailable, logging.SanitizeError(primaryErr))
	}

	e.logger.Warn("primary embedding endpoint failed, trying fallback",
		zap.String("error", logging.SanitizeError(primaryErr)))

	out, fallbackErr := e.fallback.CreateEmbeddings(ctx, inputs)
	if fallbackErr == nil {
		return out, nil
	}

	return nil, fmt.Errorf("%w: primary: %s; fallback: %s",
		apperrors.ErrBackendUnavailable,
		logging.SanitizeError(primaryErr),
		logging.SanitizeError(fallbackErr))
}
