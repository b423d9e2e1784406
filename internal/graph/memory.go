package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

// MemoryStore keeps the graph in process. It is safe for concurrent use.
type MemoryStore struct {
	Tuning

	mu       sync.RWMutex
	nodes    map[string]apptype.GraphNode
	edges    []apptype.GraphEdge
	edgeIdx  map[apptype.EdgeKey]int
	incident map[string][]int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts Options) *MemoryStore {
	s := &MemoryStore{
		nodes:    make(map[string]apptype.GraphNode),
		edgeIdx:  make(map[apptype.EdgeKey]int),
		incident: make(map[string][]int),
	}
	s.Configure(opts)
	return s
}

func (s *MemoryStore) UpsertNode(_ context.Context, node apptype.GraphNode) error {
	if err := node.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
	return nil
}

func (s *MemoryStore) UpsertEdge(_ context.Context, edge apptype.GraphEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []string{edge.SourceID, edge.TargetID} {
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", apperr.ErrDanglingEdge, id)
		}
	}
	if i, ok := s.edgeIdx[edge.Key()]; ok {
		s.edges[i] = edge
		return nil
	}
	i := len(s.edges)
	s.edges = append(s.edges, edge)
	s.edgeIdx[edge.Key()] = i
	s.incident[edge.SourceID] = append(s.incident[edge.SourceID], i)
	if edge.TargetID != edge.SourceID {
		s.incident[edge.TargetID] = append(s.incident[edge.TargetID], i)
	}
	return nil
}

func (s *MemoryStore) Node(_ context.Context, id string) (apptype.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return apptype.GraphNode{}, fmt.Errorf("%w: node %s", apperr.ErrNotFound, id)
	}
	return n, nil
}

func (s *MemoryStore) FindRelated(ctx context.Context, seedID string, maxDepth int) ([]apptype.RelatedEdge, error) {
	opts := s.Options()
	opts.MaxDepth = maxDepth
	return Traverse(ctx, s, seedID, opts)
}

// IncidentEdges returns edges touching any of nodeIDs in insertion order.
func (s *MemoryStore) IncidentEdges(_ context.Context, nodeIDs []string) ([]apptype.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int]struct{})
	var idx []int
	for _, id := range nodeIDs {
		for _, i := range s.incident[id] {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	out := make([]apptype.GraphEdge, len(idx))
	for k, i := range idx {
		out[k] = s.edges[i]
	}
	return out, nil
}
