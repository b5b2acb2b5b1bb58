package llm

import (
	"context"
)

// MockClient is a function-field mock for tests.
type MockClient struct {
	GenerateResponseFunc  func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)
	Model                 string
	Endpoint              string
	GenerateResponseCalls int
	// Prompts records every prompt passed to GenerateResponse, in order.
	Prompts []string
}

var _ Client = (*MockClient)(nil)

// GenerateResponse implements Client.
func (m *MockClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.GenerateResponseCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// GetModel implements Client.
func (m *MockClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements Client.
func (m *MockClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock"
	}
	return m.Endpoint
}

// MockEmbedder is a function-field embedding mock for tests.
type MockEmbedder struct {
	CreateEmbeddingsFunc  func(ctx context.Context, inputs []string) ([][]float32, error)
	CreateEmbeddingsCalls int
}

var _ Embedder = (*MockEmbedder)(nil)

// CreateEmbedding implements Embedder.
func (m *MockEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := m.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// CreateEmbeddings implements Embedder.
func (m *MockEmbedder) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.CreateEmbeddingsCalls++
	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, inputs)
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0, 0, 0}
	}
	return out, nil
}
