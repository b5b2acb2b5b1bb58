package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/llm"
)

func loadedTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog(writeTestSchema(t, testSchemaJSON), zap.NewNop())
	require.NoError(t, c.Load())
	return c
}

func TestRetrieve_FullDumpUnderThreshold(t *testing.T) {
	c := loadedTestCatalog(t)
	// Threshold well above the catalog's estimated size.
	r := NewRetriever(c, nil, 30000, zap.NewNop())

	entries, err := r.Retrieve(context.Background(), "anything at all", 1)
	require.NoError(t, err)

	// Full dump ignores topK.
	assert.Len(t, entries, 2)
}

func TestRetrieve_CatalogUnavailable(t *testing.T) {
	c := NewCatalog("missing.json", zap.NewNop())
	r := NewRetriever(c, nil, 30000, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "question", 5)
	assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)
}

func TestRetrieve_KeywordFallbackRanksByOverlap(t *testing.T) {
	c := loadedTestCatalog(t)
	// Threshold of zero forces ranked retrieval; nil embedder forces the
	// keyword path.
	r := NewRetriever(c, nil, 0, zap.NewNop())

	entries, err := r.Retrieve(context.Background(), "which crew members are captains?", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "crew_members", entries[0].Table)
}

func TestRetrieve_KeywordFallbackSingularizes(t *testing.T) {
	c := loadedTestCatalog(t)
	r := NewRetriever(c, nil, 0, zap.NewNop())

	// "flights" should match the ops.flights table even though the question
	// uses the plural.
	entries, err := r.Retrieve(context.Background(), "list all flights", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "flights", entries[0].Table)
}

func TestRetrieve_SemanticRanksBySimilarity(t *testing.T) {
	c := loadedTestCatalog(t)
	embedder := &llm.MockEmbedder{
		CreateEmbeddingsFunc: func(ctx context.Context, inputs []string) ([][]float32, error) {
			out := make([][]float32, len(inputs))
			for i, in := range inputs {
				// Questions and entries about flights point one way,
				// everything else the other.
				if strings.Contains(strings.ToLower(in), "flight") {
					out[i] = []float32{1, 0}
				} else {
					out[i] = []float32{0, 1}
				}
			}
			return out, nil
		},
	}
	r := NewRetriever(c, embedder, 0, zap.NewNop())

	entries, err := r.Retrieve(context.Background(), "how many flights departed today?", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "flights", entries[0].Table)
}

func TestRetrieve_EmbedderFailureFallsBackToKeywords(t *testing.T) {
	c := loadedTestCatalog(t)
	embedder := &llm.MockEmbedder{
		CreateEmbeddingsFunc: func(ctx context.Context, inputs []string) ([][]float32, error) {
			return nil, errors.New("embedding backend down")
		},
	}
	r := NewRetriever(c, embedder, 0, zap.NewNop())

	entries, err := r.Retrieve(context.Background(), "crew members in dallas", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "crew_members", entries[0].Table)
}

func TestRetrieve_IndexReusedAcrossCalls(t *testing.T) {
	c := loadedTestCatalog(t)
	embedder := &llm.MockEmbedder{}
	r := NewRetriever(c, embedder, 0, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "first", 2)
	require.NoError(t, err)
	_, err = r.Retrieve(context.Background(), "second", 2)
	require.NoError(t, err)

	// One batch call for the catalog index plus one single-question call
	// per Retrieve.
	assert.Equal(t, 3, embedder.CreateEmbeddingsCalls)
}
