package database

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/graph"
)

func setupBenchIndex(b *testing.B, n int) (*VectorIndex, func()) {
	b.Helper()
	cfg := NewConfig()
	cfg.URL = "file:benchdb?mode=memory&cache=shared"
	cfg.EmbeddingDims = 16
	dbm, err := NewDBManager(cfg)
	if err != nil {
		b.Fatalf("NewDBManager: %v", err)
	}
	idx, err := NewVectorIndex(dbm, embeddings.NewHashing(cfg.EmbeddingDims))
	if err != nil {
		b.Fatalf("NewVectorIndex: %v", err)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	for i := range n {
		emb := make([]float32, cfg.EmbeddingDims)
		for d := range emb {
			emb[d] = rng.Float32()
		}
		doc := apptype.Document{ID: "doc_" + strconv.Itoa(i), Content: "bench data", Embedding: emb}
		if err := idx.Upsert(ctx, doc); err != nil {
			b.Fatalf("Upsert: %v", err)
		}
	}
	return idx, func() { _ = dbm.Close() }
}

func BenchmarkVectorSearch(b *testing.B) {
	idx, cleanup := setupBenchIndex(b, 2000)
	defer cleanup()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search(ctx, "lorem ipsum dolor", 5, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindRelated(b *testing.B) {
	dbm, err := NewDBManager(&Config{URL: "sqlite::memory:", EmbeddingDims: 4})
	if err != nil {
		b.Fatalf("NewDBManager: %v", err)
	}
	defer dbm.Close()
	s := NewGraphStore(dbm, graph.Options{})
	ctx := context.Background()

	// a 3-level tree with fan-out 10
	if err := s.UpsertNode(ctx, apptype.GraphNode{ID: "root", Type: "t"}); err != nil {
		b.Fatal(err)
	}
	frontier := []string{"root"}
	for level := 0; level < 3; level++ {
		var next []string
		for _, parent := range frontier {
			for c := range 10 {
				id := parent + "." + strconv.Itoa(c)
				if err := s.UpsertNode(ctx, apptype.GraphNode{ID: id, Type: "t"}); err != nil {
					b.Fatal(err)
				}
				if err := s.UpsertEdge(ctx, apptype.GraphEdge{SourceID: parent, TargetID: id, RelationshipType: "HAS", Strength: 0.9}); err != nil {
					b.Fatal(err)
				}
				next = append(next, id)
			}
		}
		frontier = next
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.FindRelated(ctx, "root", 2); err != nil {
			b.Fatal(err)
		}
	}
}
