package schema

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
)

// Retriever selects the catalog slice relevant to a question. Small catalogs
// are returned whole; large ones are ranked by embedding similarity, with a
// keyword-overlap fallback when the embedding backend is unavailable.
type Retriever struct {
	catalog        *Catalog
	embedder       llm.Embedder // may be nil
	tokenThreshold int
	logger         *zap.Logger

	mu    sync.Mutex
	index *embeddingIndex
}

type embeddingIndex struct {
	snap *Snapshot
	vecs [][]float32
}

// NewRetriever creates a retriever over the catalog. A nil embedder disables
// semantic ranking entirely.
func NewRetriever(catalog *Catalog, embedder llm.Embedder, tokenThreshold int, logger *zap.Logger) *Retriever {
	return &Retriever{
		catalog:        catalog,
		embedder:       embedder,
		tokenThreshold: tokenThreshold,
		logger:         logger.Named("retriever"),
	}
}

// Retrieve returns up to topK schema entries ordered most relevant first.
// Fails with ErrCatalogUnavailable when the catalog has not loaded.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]models.SchemaEntry, error) {
	snap, err := r.catalog.Snapshot()
	if err != nil {
		return nil, err
	}

	// Small catalog: hand the model everything, no ranking needed.
	if snap.Stats.EstimatedTokens <= r.tokenThreshold {
		return cloneEntries(snap.Entries), nil
	}

	if r.embedder != nil {
		entries, err := r.semanticRetrieve(ctx, snap, question, topK)
		if err == nil {
			return entries, nil
		}
		r.logger.Warn("semantic retrieval failed, falling back to keyword overlap",
			zap.String("error", logging.SanitizeError(err)))
	}

	return r.keywordRetrieve(snap, question, topK), nil
}

func (r *Retriever) semanticRetrieve(ctx context.Context, snap *Snapshot, question string, topK int) ([]models.SchemaEntry, error) {
	index, err := r.indexFor(ctx, snap)
	if err != nil {
		return nil, err
	}

	qvec, err := r.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(snap.Entries))
	for i := range snap.Entries {
		scores[i] = scored{idx: i, score: cosineSimilarity(qvec, index.vecs[i])}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]models.SchemaEntry, 0, topK)
	for _, s := range scores[:topK] {
		out = append(out, snap.Entries[s.idx].Clone())
	}
	return out, nil
}

// indexFor embeds every entry once per snapshot. Reload invalidates the
// cached index because the snapshot pointer changes.
func (r *Retriever) indexFor(ctx context.Context, snap *Snapshot) (*embeddingIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index != nil && r.index.snap == snap {
		return r.index, nil
	}

	texts := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		texts[i] = entryText(&e)
	}

	vecs, err := r.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed catalog: %w", err)
	}
	if len(vecs) != len(snap.Entries) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(snap.Entries))
	}

	r.index = &embeddingIndex{snap: snap, vecs: vecs}
	return r.index, nil
}

func entryText(e *models.SchemaEntry) string {
	var sb strings.Builder
	sb.WriteString(e.QualifiedName())
	if e.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Description)
	}
	sb.WriteString(". Columns: ")
	for i, col := range e.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
	}
	return sb.String()
}

var wordPattern = regexp.MustCompile(`[a-zA-Z_]+`)

// keywordRetrieve scores entries by overlap between the question's words and
// the entry's name, description and column names. Table-name matches weigh
// more than description or column matches. Plural question words are
// singularized so "captains" still matches a "captain" column.
func (r *Retriever) keywordRetrieve(snap *Snapshot, question string, topK int) []models.SchemaEntry {
	questionWords := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(question), -1) {
		questionWords[w] = true
		questionWords[inflection.Singular(w)] = true
	}
	matches := func(w string) bool {
		return questionWords[w] || questionWords[inflection.Singular(w)]
	}

	type scored struct {
		idx   int
		score int
	}
	scores := make([]scored, len(snap.Entries))
	for i, e := range snap.Entries {
		s := 0
		for _, w := range strings.Split(strings.ToLower(e.Table), "_") {
			if matches(w) {
				s += 3
			}
		}
		if matches(strings.ToLower(e.Database)) {
			s += 2
		}
		for _, w := range wordPattern.FindAllString(strings.ToLower(entryText(&e)), -1) {
			if matches(w) {
				s++
			}
		}
		scores[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]models.SchemaEntry, 0, topK)
	for _, s := range scores[:topK] {
		out = append(out, snap.Entries[s.idx].Clone())
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneEntries(entries []models.SchemaEntry) []models.SchemaEntry {
	out := make([]models.SchemaEntry, 0, len(entries))
	for i := range entries {
		out = append(out, entries[i].Clone())
	}
	return out
}
