package vectorindex

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
)

// Memory is an exact-scan index held in process.
type Memory struct {
	embedder embeddings.Provider
	dims     int

	mu   sync.RWMutex
	docs []apptype.Document
	pos  map[string]int
}

var _ Index = (*Memory)(nil)

func NewMemory(embedder embeddings.Provider, dims int) *Memory {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Memory{embedder: embedder, dims: dims, pos: make(map[string]int)}
}

func (m *Memory) Dimensions() int { return m.dims }

func (m *Memory) Upsert(ctx context.Context, doc apptype.Document) error {
	doc, err := PrepareDocument(ctx, doc, m.embedder, m.dims)
	if err != nil {
		return err
	}
	doc.Embedding = slices.Clone(doc.Embedding)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.pos[doc.ID]; ok {
		m.docs[i] = doc
		return nil
	}
	m.pos[doc.ID] = len(m.docs)
	m.docs = append(m.docs, doc)
	return nil
}

func (m *Memory) Search(ctx context.Context, query string, k int, threshold float64) ([]apptype.ScoredDocument, error) {
	if k <= 0 {
		return []apptype.ScoredDocument{}, nil
	}
	q, err := embeddings.EmbedOne(ctx, m.embedder, query, m.dims)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	hits := make([]apptype.ScoredDocument, 0, len(m.docs))
	for _, d := range m.docs {
		hits = append(hits, apptype.ScoredDocument{Document: d, Similarity: CosineSimilarity(q, d.Embedding)})
	}
	m.mu.RUnlock()
	return Rank(hits, k, threshold), nil
}

func (m *Memory) Get(_ context.Context, id string) (apptype.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.pos[id]
	if !ok {
		return apptype.Document{}, fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
	}
	return m.docs[i], nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}
