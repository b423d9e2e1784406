// Package graph implements relationship discovery over a typed, weighted,
// directed graph. Traversal treats edges as navigable from either endpoint.
package graph

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

const (
	DefaultMaxDepth = 2
	DefaultDecay    = 0.8
	DefaultLimit    = 20
)

// Store is the contract every graph backend satisfies.
type Store interface {
	UpsertNode(ctx context.Context, node apptype.GraphNode) error
	UpsertEdge(ctx context.Context, edge apptype.GraphEdge) error
	Node(ctx context.Context, id string) (apptype.GraphNode, error)
	FindRelated(ctx context.Context, seedID string, maxDepth int) ([]apptype.RelatedEdge, error)
}

// Adjacency answers which edges touch any of the given nodes. Each edge is
// returned at most once per call, in a stable order.
type Adjacency interface {
	IncidentEdges(ctx context.Context, nodeIDs []string) ([]apptype.GraphEdge, error)
}

// Options tunes a traversal. Zero fields fall back to the defaults.
type Options struct {
	MaxDepth int     `yaml:"max_depth"`
	Decay    float64 `yaml:"decay_per_hop"`
	Limit    int     `yaml:"result_limit"`
}

func (o Options) withDefaults() Options {
	if o.Decay <= 0 || o.Decay > 1 {
		o.Decay = DefaultDecay
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// Tuning holds traversal options that may be swapped while queries run.
// Backends embed it.
type Tuning struct {
	opts atomic.Pointer[Options]
}

// Configure replaces the decay and limit used by later traversals.
func (t *Tuning) Configure(o Options) {
	o = o.withDefaults()
	t.opts.Store(&o)
}

// Options returns the current traversal options.
func (t *Tuning) Options() Options {
	if p := t.opts.Load(); p != nil {
		return *p
	}
	return Options{}.withDefaults()
}

type visit struct {
	node  string
	depth int
}

// Traverse runs a breadth-first search from seed out to opts.MaxDepth hops.
//
// A hop-1 edge keeps its own strength. Every later hop scores
// edge.Strength * parent * Decay, where parent is the best effective strength
// that reached the node being expanded. Edges are deduplicated by natural key
// keeping the highest effective strength (shallower depth on ties), then
// ordered by strength desc, depth asc, discovery order, and capped at Limit.
//
// Each (node, depth) pair is expanded at most once, and a node is not expanded
// again with a parent strength no better than one it was already expanded
// with, so cycles terminate.
func Traverse(ctx context.Context, adj Adjacency, seed string, opts Options) ([]apptype.RelatedEdge, error) {
	opts = opts.withDefaults()
	results := []apptype.RelatedEdge{}
	if opts.MaxDepth <= 0 || seed == "" {
		return results, nil
	}

	visited := make(map[visit]struct{})
	bestExpanded := make(map[string]float64)
	found := make(map[apptype.EdgeKey]int)

	record := func(e apptype.GraphEdge, depth int, eff float64) {
		if idx, ok := found[e.Key()]; ok {
			r := &results[idx]
			if eff > r.EffectiveStrength || (eff == r.EffectiveStrength && depth < r.Depth) {
				r.EffectiveStrength = eff
				r.Depth = depth
			}
			return
		}
		found[e.Key()] = len(results)
		results = append(results, apptype.RelatedEdge{GraphEdge: e, Depth: depth, EffectiveStrength: eff})
	}

	frontier := map[string]float64{seed: 1.0}
	order := []string{seed}
	for depth := 1; depth <= opts.MaxDepth && len(order) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expand := make([]string, 0, len(order))
		parents := make(map[string]float64, len(order))
		for _, n := range order {
			s := frontier[n]
			v := visit{node: n, depth: depth}
			if _, seen := visited[v]; seen {
				continue
			}
			visited[v] = struct{}{}
			if prev, ok := bestExpanded[n]; ok && prev >= s {
				continue
			}
			bestExpanded[n] = s
			parents[n] = s
			expand = append(expand, n)
		}
		if len(expand) == 0 {
			break
		}

		edges, err := adj.IncidentEdges(ctx, expand)
		if err != nil {
			return nil, err
		}

		next := make(map[string]float64)
		var nextOrder []string
		reach := func(e apptype.GraphEdge, from, far string) {
			eff := e.Strength
			if depth > 1 {
				eff = e.Strength * parents[from] * opts.Decay
			}
			record(e, depth, eff)
			if cur, ok := next[far]; !ok {
				next[far] = eff
				nextOrder = append(nextOrder, far)
			} else if eff > cur {
				next[far] = eff
			}
		}
		for _, e := range edges {
			_, fromSource := parents[e.SourceID]
			_, fromTarget := parents[e.TargetID]
			if fromSource {
				reach(e, e.SourceID, e.TargetID)
			}
			if fromTarget && e.SourceID != e.TargetID {
				reach(e, e.TargetID, e.SourceID)
			}
		}
		frontier, order = next, nextOrder
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].EffectiveStrength != results[j].EffectiveStrength {
			return results[i].EffectiveStrength > results[j].EffectiveStrength
		}
		return results[i].Depth < results[j].Depth
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
