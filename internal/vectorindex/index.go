// Package vectorindex defines the document similarity index and its
// in-process backend. SQL and Qdrant backends live in their own packages.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
)

const (
	DefaultDimensions = 384
	DefaultK          = 5
	DefaultThreshold  = 0.6
)

// Index stores documents with fixed-dimension embeddings and answers top-k
// similarity queries.
type Index interface {
	// Upsert embeds doc.Content when doc.Embedding is empty, rejects vectors
	// whose length differs from Dimensions with apperr.ErrDimensionMismatch and
	// replaces any document with the same id.
	Upsert(ctx context.Context, doc apptype.Document) error
	// Search returns at most k documents with similarity > threshold, most
	// similar first; equal scores keep insertion order.
	Search(ctx context.Context, query string, k int, threshold float64) ([]apptype.ScoredDocument, error)
	Get(ctx context.Context, id string) (apptype.Document, error)
	Count(ctx context.Context) (int, error)
	Dimensions() int
}

// PrepareDocument validates doc and fills in its embedding.
func PrepareDocument(ctx context.Context, doc apptype.Document, p embeddings.Provider, dims int) (apptype.Document, error) {
	if err := doc.Validate(); err != nil {
		return doc, err
	}
	if len(doc.Embedding) == 0 {
		vec, err := embeddings.EmbedOne(ctx, p, doc.Content, dims)
		if err != nil {
			return doc, err
		}
		doc.Embedding = vec
	}
	if err := CheckVector(doc.Embedding, dims); err != nil {
		return doc, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// CheckVector enforces the fixed dimension and rejects non-finite entries.
func CheckVector(v []float32, dims int) error {
	if len(v) != dims {
		return fmt.Errorf("%w: got %d, want %d", apperr.ErrDimensionMismatch, len(v), dims)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite value at index %d", apperr.ErrInvalidArgument, i)
		}
	}
	return nil
}

// CosineSimilarity returns 1 - cosine distance. Zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank filters hits to similarity > threshold, sorts them stably by
// similarity descending and keeps the first k. hits must already be in
// insertion order.
func Rank(hits []apptype.ScoredDocument, k int, threshold float64) []apptype.ScoredDocument {
	out := hits[:0]
	for _, h := range hits {
		if h.Similarity > threshold {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
