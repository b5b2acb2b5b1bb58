// Package llm provides chat-completion and embedding clients for the
// model backends the pipeline depends on.
package llm

import (
	"context"
)

// Client defines the chat-completion contract. Use this interface for
// dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion for the given prompt
	// and system message.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Embedder defines the text-embedding contract.
type Embedder interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// Ensure implementations satisfy the interfaces at compile time.
var (
	_ Client   = (*OpenAIClient)(nil)
	_ Embedder = (*OpenAIClient)(nil)
	_ Client   = (*AnthropicClient)(nil)
	_ Client   = (*FailoverClient)(nil)
	_ Embedder = (*FailoverEmbedder)(nil)
)
