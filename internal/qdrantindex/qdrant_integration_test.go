//go:build integration

package qdrantindex

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

// Run with a local server: docker run -p 6334:6334 qdrant/qdrant
func testConfig(collection string) Config {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if p, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		port = p
	}
	return Config{Host: host, Port: port, Collection: collection}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dims := vectorindex.DefaultDimensions
	idx, err := New(context.Background(), testConfig("test_"+uuid.NewString()), embeddings.NewHashing(dims), dims)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = idx.client.DeleteCollection(context.Background(), idx.collection)
		_ = idx.Close()
	})
	return idx
}

func TestQdrantPasswordScenario(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "kb_001", Title: "Password Reset", Content: "reset your password via the login page", Tags: []string{"password"}}))
	require.NoError(t, idx.Upsert(ctx, apptype.Document{ID: "kb_005", Title: "Billing", Content: "Invoices are emailed monthly."}))

	hits, err := idx.Search(ctx, "How do I reset my password?", vectorindex.DefaultK, vectorindex.DefaultThreshold)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "kb_001", hits[0].Document.ID)

	hits, err = idx.Search(ctx, "what is the weather", vectorindex.DefaultK, vectorindex.DefaultThreshold)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, err := idx.Get(ctx, "kb_001")
	require.NoError(t, err)
	assert.Equal(t, []string{"password"}, doc.Tags)
	assert.Len(t, doc.Embedding, vectorindex.DefaultDimensions)
}

func TestQdrantConcurrentStartupSharesCollection(t *testing.T) {
	dims := vectorindex.DefaultDimensions
	cfg := testConfig("test_" + uuid.NewString())

	var g errgroup.Group
	idxs := make([]*Index, 4)
	for i := range idxs {
		g.Go(func() error {
			idx, err := New(context.Background(), cfg, embeddings.NewHashing(dims), dims)
			idxs[i] = idx
			return err
		})
	}
	require.NoError(t, g.Wait())
	t.Cleanup(func() {
		_ = idxs[0].client.DeleteCollection(context.Background(), cfg.Collection)
		for _, idx := range idxs {
			_ = idx.Close()
		}
	})

	ctx := context.Background()
	require.NoError(t, idxs[1].Upsert(ctx, apptype.Document{ID: "kb_001", Content: "reset your password"}))
	n, err := idxs[3].Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQdrantRejectsWrongDimensions(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Upsert(context.Background(), apptype.Document{ID: "a", Content: "x", Embedding: []float32{1, 2}})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
}
