package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
)

// maxInParams keeps IN lists well under SQLite's bound-parameter limit.
const maxInParams = 400

// GraphStore keeps nodes and edges in the graph_nodes and graph_edges tables
// and traverses them level by level.
type GraphStore struct {
	graph.Tuning
	dm *DBManager
}

var (
	_ graph.Store     = (*GraphStore)(nil)
	_ graph.Adjacency = (*GraphStore)(nil)
)

func NewGraphStore(dm *DBManager, opts graph.Options) *GraphStore {
	s := &GraphStore{dm: dm}
	s.Configure(opts)
	return s
}

func (s *GraphStore) UpsertNode(ctx context.Context, node apptype.GraphNode) error {
	done := metrics.TimeOp("db_upsert_node")
	success := false
	defer func() { done(success) }()

	if err := node.Validate(); err != nil {
		return err
	}
	props, err := node.Properties.Encode()
	if err != nil {
		return err
	}
	stmt, err := s.dm.getPreparedStmt(ctx, `INSERT INTO graph_nodes (node_id, node_type, properties)
        VALUES (?, ?, ?)
        ON CONFLICT(node_id) DO UPDATE SET
            node_type = excluded.node_type,
            properties = excluded.properties,
            updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return unavailable("prepare node upsert", err)
	}
	if _, err := stmt.ExecContext(ctx, node.ID, node.Type, props); err != nil {
		return unavailable("upsert node", err)
	}
	success = true
	return nil
}

// UpsertEdge inserts or replaces an edge by (source, target, type). Both
// endpoints must already exist; the check and the write share a transaction.
func (s *GraphStore) UpsertEdge(ctx context.Context, edge apptype.GraphEdge) error {
	done := metrics.TimeOp("db_upsert_edge")
	success := false
	defer func() { done(success) }()

	if err := edge.Validate(); err != nil {
		return err
	}
	props, err := edge.Properties.Encode()
	if err != nil {
		return err
	}
	tx, err := s.dm.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin edge upsert", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM graph_nodes WHERE node_id IN (?, ?)`, edge.SourceID, edge.TargetID).Scan(&n); err != nil {
		return unavailable("check edge endpoints", err)
	}
	want := 2
	if edge.SourceID == edge.TargetID {
		want = 1
	}
	if n != want {
		return fmt.Errorf("%w: %s --[%s]--> %s", apperr.ErrDanglingEdge, edge.SourceID, edge.RelationshipType, edge.TargetID)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO graph_edges (source_id, target_id, relationship_type, strength, properties)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(source_id, target_id, relationship_type) DO UPDATE SET
            strength = excluded.strength,
            properties = excluded.properties`,
		edge.SourceID, edge.TargetID, edge.RelationshipType, edge.Strength, props); err != nil {
		return unavailable("upsert edge", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit edge upsert", err)
	}
	success = true
	return nil
}

func (s *GraphStore) Node(ctx context.Context, id string) (apptype.GraphNode, error) {
	var (
		node  apptype.GraphNode
		props string
	)
	err := s.dm.db.QueryRowContext(ctx,
		`SELECT node_id, node_type, properties FROM graph_nodes WHERE node_id = ?`, id).Scan(&node.ID, &node.Type, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return node, fmt.Errorf("%w: node %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return node, unavailable("get node", err)
	}
	if node.Properties, err = apptype.DecodeProperties(props); err != nil {
		return node, err
	}
	return node, nil
}

// FindRelated returns edges within maxDepth hops of seedID, strongest first.
func (s *GraphStore) FindRelated(ctx context.Context, seedID string, maxDepth int) ([]apptype.RelatedEdge, error) {
	done := metrics.TimeOp("db_find_related")
	success := false
	defer func() { done(success) }()

	opts := s.Options()
	opts.MaxDepth = maxDepth
	out, err := graph.Traverse(ctx, s, seedID, opts)
	if err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

// IncidentEdges loads every edge touching nodeIDs, in insertion order.
func (s *GraphStore) IncidentEdges(ctx context.Context, nodeIDs []string) ([]apptype.GraphEdge, error) {
	type row struct {
		id   int64
		edge apptype.GraphEdge
	}
	seen := make(map[int64]struct{})
	var rows []row
	for start := 0; start < len(nodeIDs); start += maxInParams {
		chunk := nodeIDs[start:min(start+maxInParams, len(nodeIDs))]
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		args := make([]any, 0, 2*len(chunk))
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, args...)
		q := fmt.Sprintf(`SELECT id, source_id, target_id, relationship_type, strength, properties
            FROM graph_edges
            WHERE source_id IN (%s) OR target_id IN (%s)
            ORDER BY id`, ph, ph)
		rs, err := s.dm.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, unavailable("load incident edges", err)
		}
		for rs.Next() {
			var (
				r     row
				props string
			)
			if err := rs.Scan(&r.id, &r.edge.SourceID, &r.edge.TargetID, &r.edge.RelationshipType, &r.edge.Strength, &props); err != nil {
				rs.Close()
				return nil, unavailable("scan edge", err)
			}
			if _, dup := seen[r.id]; dup {
				continue
			}
			seen[r.id] = struct{}{}
			if r.edge.Properties, err = apptype.DecodeProperties(props); err != nil {
				rs.Close()
				return nil, err
			}
			rows = append(rows, r)
		}
		err = rs.Err()
		rs.Close()
		if err != nil {
			return nil, unavailable("load incident edges", err)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	out := make([]apptype.GraphEdge, len(rows))
	for i, r := range rows {
		out[i] = r.edge
	}
	return out, nil
}
