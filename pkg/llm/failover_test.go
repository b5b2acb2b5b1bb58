package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
)

func TestFailoverClient_PrimarySucceeds(t *testing.T) {
	primary := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "primary answer", nil
		},
	}
	fallback := &MockClient{}

	fc := NewFailoverClient(primary, fallback, 0, zap.NewNop())
	out, err := fc.GenerateResponse(context.Background(), "q", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "primary answer", out)
	assert.Equal(t, 1, primary.GenerateResponseCalls)
	assert.Equal(t, 0, fallback.GenerateResponseCalls)
}

func TestFailoverClient_FallsBack(t *testing.T) {
	primary := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	fallback := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "fallback answer", nil
		},
	}

	fc := NewFailoverClient(primary, fallback, 0, zap.NewNop())
	out, err := fc.GenerateResponse(context.Background(), "q", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", out)
	assert.Equal(t, 1, primary.GenerateResponseCalls)
	assert.Equal(t, 1, fallback.GenerateResponseCalls)
}

func TestFailoverClient_BothFail(t *testing.T) {
	fail := func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		return "", errors.New("boom")
	}
	fc := NewFailoverClient(
		&MockClient{GenerateResponseFunc: fail},
		&MockClient{GenerateResponseFunc: fail},
		0, zap.NewNop())

	_, err := fc.GenerateResponse(context.Background(), "q", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestFailoverClient_NoFallbackConfigured(t *testing.T) {
	fc := NewFailoverClient(&MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "", errors.New("boom")
		},
	}, nil, 0, zap.NewNop())

	_, err := fc.GenerateResponse(context.Background(), "q", "", 0)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestFailoverClient_AppliesConfiguredTimeout(t *testing.T) {
	var deadlineSet bool
	primary := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			_, deadlineSet = ctx.Deadline()
			return "answer", nil
		},
	}

	fc := NewFailoverClient(primary, nil, 30*time.Second, zap.NewNop())
	_, err := fc.GenerateResponse(context.Background(), "q", "", 0)
	require.NoError(t, err)
	assert.True(t, deadlineSet, "model call should carry a deadline even when the inbound context has none")
}

func TestFailoverEmbedder_AppliesConfiguredTimeout(t *testing.T) {
	var deadlineSet bool
	primary := &MockEmbedder{
		CreateEmbeddingsFunc: func(ctx context.Context, inputs []string) ([][]float32, error) {
			_, deadlineSet = ctx.Deadline()
			return [][]float32{{1}}, nil
		},
	}

	fe := NewFailoverEmbedder(primary, nil, 30*time.Second, zap.NewNop())
	_, err := fe.CreateEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, deadlineSet)
}

func TestFailoverEmbedder_FallsBack(t *testing.T) {
	primary := &MockEmbedder{
		CreateEmbeddingsFunc: func(ctx context.Context, inputs []string) ([][]float32, error) {
			return nil, errors.New("timeout")
		},
	}
	fallback := &MockEmbedder{
		CreateEmbeddingsFunc: func(ctx context.Context, inputs []string) ([][]float32, error) {
			return [][]float32{{1, 2, 3}}, nil
		},
	}

	fe := NewFailoverEmbedder(primary, fallback, 0, zap.NewNop())
	out, err := fe.CreateEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, out)
}
