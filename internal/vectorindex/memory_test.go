package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
)

// tableEmbedder returns fixed vectors for known texts.
type tableEmbedder struct {
	dims  int
	table map[string][]float32
	err   error
}

func (e tableEmbedder) Name() string    { return "table" }
func (e tableEmbedder) Dimensions() int { return e.dims }
func (e tableEmbedder) Embed(_ context.Context, in []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(in))
	for i, s := range in {
		v, ok := e.table[s]
		if !ok {
			v = make([]float32, e.dims)
		}
		out[i] = v
	}
	return out, nil
}

func TestEndToEndPasswordScenario(t *testing.T) {
	idx := NewMemory(embeddings.NewHashing(DefaultDimensions), DefaultDimensions)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, apptype.Document{
		ID:      "kb_001",
		Title:   "Password Reset Instructions",
		Content: "reset your password via the login page",
	}))
	require.NoError(t, idx.Upsert(ctx, apptype.Document{
		ID:      "kb_004",
		Title:   "Mobile App Sync Issues",
		Content: "If your mobile app is not syncing, force close the app and reopen it.",
	}))

	// The hashing embedder is the offline default, not a calibrated model; the
	// password query clears the 0.6 threshold at about 0.71.
	hits, err := idx.Search(ctx, "How do I reset my password?", DefaultK, DefaultThreshold)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "kb_001", hits[0].Document.ID)
	assert.Greater(t, hits[0].Similarity, DefaultThreshold)

	hits, err = idx.Search(ctx, "what is the weather", DefaultK, DefaultThreshold)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDimensionInvariant(t *testing.T) {
	idx := NewMemory(embeddings.NewHashing(4), 4)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "a", Content: "x", Embedding: []float32{1, 0, 0, 0}}))

	err := idx.Upsert(ctx, apptype.Document{ID: "a", Content: "y", Embedding: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
	err = idx.Upsert(ctx, apptype.Document{ID: "b", Content: "y", Embedding: []float32{1, 0, 0, 0, 0}})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := idx.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Content)
	assert.Len(t, got.Embedding, 4)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	emb := tableEmbedder{dims: 2, table: map[string][]float32{"q": {1, 0}}}
	idx := NewMemory(emb, 2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "first", Content: "a", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "second", Content: "b", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "first", Content: "a2", Embedding: []float32{2, 0}}))

	hits, err := idx.Search(ctx, "q", 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// identical similarity, so insertion order decides
	assert.Equal(t, "first", hits[0].Document.ID)
	assert.Equal(t, "a2", hits[0].Document.Content)
	assert.Equal(t, "second", hits[1].Document.ID)

	n, _ := idx.Count(ctx)
	assert.Equal(t, 2, n)
}

func TestThresholdAndKMonotonicity(t *testing.T) {
	emb := tableEmbedder{dims: 2, table: map[string][]float32{"q": {1, 0}}}
	idx := NewMemory(emb, 2)
	ctx := context.Background()
	vecs := [][]float32{{1, 0}, {1, 0.2}, {1, 0.6}, {1, 1}, {0.2, 1}, {0, 1}, {-1, 0}}
	for i, v := range vecs {
		require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: string(rune('a' + i)), Content: "c", Embedding: v}))
	}

	prev := 1 << 30
	for _, th := range []float64{-1.5, -0.5, 0, 0.3, 0.6, 0.9, 0.99, 1} {
		hits, err := idx.Search(ctx, "q", 10, th)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), prev, "threshold %v", th)
		for _, h := range hits {
			assert.Greater(t, h.Similarity, th)
		}
		prev = len(hits)
	}

	prev = 1 << 30
	for _, k := range []int{10, 5, 3, 1, 0} {
		hits, err := idx.Search(ctx, "q", k, -2)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), prev)
		assert.LessOrEqual(t, len(hits), k)
		prev = len(hits)
	}

	hits, err := idx.Search(ctx, "q", 3, -2)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{hits[0].Document.ID, hits[1].Document.ID, hits[2].Document.ID})
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}
}

func TestSearchEmbeddingFailure(t *testing.T) {
	idx := NewMemory(tableEmbedder{dims: 2, err: errors.New("model offline")}, 2)
	_, err := idx.Search(context.Background(), "q", 5, 0.5)
	assert.ErrorIs(t, err, apperr.ErrEmbedding)

	err = idx.Upsert(context.Background(), apptype.Document{ID: "x", Content: "needs embedding"})
	assert.ErrorIs(t, err, apperr.ErrEmbedding)
}

func TestUpsertValidation(t *testing.T) {
	idx := NewMemory(embeddings.NewHashing(4), 4)
	ctx := context.Background()
	assert.ErrorIs(t, idx.Upsert(ctx, apptype.Document{Content: "no id"}), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, idx.Upsert(ctx, apptype.Document{ID: "x"}), apperr.ErrInvalidArgument)

	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "x", Content: "tagged", Tags: []string{"b", "a", "b"}}))
	got, err := idx.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Tags)

	_, err = idx.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
