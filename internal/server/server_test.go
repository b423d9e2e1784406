package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

type fakeBackend struct {
	docs    []apptype.Document
	nodes   []apptype.GraphNode
	edges   []apptype.GraphEdge
	points  []apptype.MetricPoint
	queries []string
	depths  []*int
}

func (f *fakeBackend) Query(_ context.Context, text string) (*apptype.QueryResult, error) {
	f.queries = append(f.queries, text)
	if text == "" {
		return nil, apperr.ErrClassification
	}
	return &apptype.QueryResult{
		Query:      text,
		Intent:     apptype.Intent{Type: "password_reset", Confidence: 0.7},
		Context:    "Intent: password_reset (confidence: 0.70)",
		Confidence: 0.85,
		Sources:    []string{"Password Reset"},
	}, nil
}

func (f *fakeBackend) UpsertDocuments(_ context.Context, docs []apptype.Document) (int, error) {
	f.docs = append(f.docs, docs...)
	return len(docs), nil
}

func (f *fakeBackend) UpsertNodes(_ context.Context, nodes []apptype.GraphNode) (int, error) {
	f.nodes = append(f.nodes, nodes...)
	return len(nodes), nil
}

func (f *fakeBackend) UpsertEdges(_ context.Context, edges []apptype.GraphEdge) (int, error) {
	for i, e := range edges {
		if e.TargetID == "ghost" {
			return i, apperr.ErrDanglingEdge
		}
		f.edges = append(f.edges, e)
	}
	return len(edges), nil
}

func (f *fakeBackend) FindRelated(_ context.Context, nodeID string, maxDepth *int) ([]apptype.RelatedEdge, error) {
	if nodeID == "" {
		return nil, errors.New("node id required")
	}
	f.depths = append(f.depths, maxDepth)
	if maxDepth != nil && *maxDepth == 0 {
		return []apptype.RelatedEdge{}, nil
	}
	return []apptype.RelatedEdge{{
		GraphEdge:         apptype.GraphEdge{SourceID: nodeID, TargetID: "product_A", RelationshipType: "USES", Strength: 0.5},
		Depth:             1,
		EffectiveStrength: 0.5,
	}}, nil
}

func (f *fakeBackend) RecordMetric(_ context.Context, p apptype.MetricPoint) error {
	f.points = append(f.points, p)
	return nil
}

func (f *fakeBackend) QueryMetrics(_ context.Context, name, window string) (apptype.MetricsResult, error) {
	return apptype.MetricsResult{
		Name:    name,
		Window:  window,
		Points:  []apptype.MetricPoint{{Name: name, Timestamp: time.Unix(0, 0).UTC(), Value: 1.5}},
		Summary: apptype.MetricSummary{Count: 1, Mean: 1.5, Min: 1.5, Max: 1.5, Latest: 1.5},
	}, nil
}

func (f *fakeBackend) Health(context.Context) apptype.HealthResult {
	return apptype.HealthResult{Name: "test", Status: "ok", Stores: map[string]string{"vector": "ok"}}
}

func (f *fakeBackend) PoolStats() (int, int) { return 0, 1 }

func connect(t *testing.T, b Backend) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv := NewMCPServer("test", b)
	st, ct := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, st)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", r.Content[0])
	return tc.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fakeBackend{})
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"query_context", "upsert_documents", "upsert_nodes", "upsert_edges",
		"find_related", "record_metric", "query_metrics", "health_check",
	}, names)
}

func TestQueryContextTool(t *testing.T) {
	fb := &fakeBackend{}
	cs := connect(t, fb)

	res := callTool(t, cs, "query_context", map[string]any{"query": "How do I reset my password?"})
	require.False(t, res.IsError, resultText(t, res))
	var got apptype.QueryResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, "password_reset", got.Intent.Type)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.Equal(t, []string{"Password Reset"}, got.Sources)
	assert.Equal(t, []string{"How do I reset my password?"}, fb.queries)

	res = callTool(t, cs, "query_context", map[string]any{"query": ""})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "classification failed")
}

func TestWriteTools(t *testing.T) {
	fb := &fakeBackend{}
	cs := connect(t, fb)

	res := callTool(t, cs, "upsert_documents", map[string]any{"documents": []map[string]any{
		{"id": "kb_001", "title": "Password Reset", "content": "Go to the login page.", "tags": []string{"password"}},
	}})
	require.False(t, res.IsError, resultText(t, res))
	assert.JSONEq(t, `{"count":1}`, resultText(t, res))
	require.Len(t, fb.docs, 1)
	assert.Equal(t, "Password Reset", fb.docs[0].Title)

	res = callTool(t, cs, "upsert_nodes", map[string]any{"nodes": []map[string]any{
		{"id": "customer_123", "type": "customer"},
		{"id": "product_A", "type": "product", "properties": map[string]any{"tier": map[string]any{"kind": "string", "string": "premium"}}},
	}})
	require.False(t, res.IsError, resultText(t, res))
	assert.JSONEq(t, `{"count":2}`, resultText(t, res))
	assert.Equal(t, apptype.StringProp("premium"), fb.nodes[1].Properties["tier"])

	res = callTool(t, cs, "upsert_edges", map[string]any{"edges": []map[string]any{
		{"source_id": "customer_123", "target_id": "product_A", "relationship_type": "USES", "strength": 0.5},
		{"source_id": "customer_123", "target_id": "ghost", "relationship_type": "USES", "strength": 0.5},
	}})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "1 stored")
	assert.Len(t, fb.edges, 1)

	res = callTool(t, cs, "record_metric", map[string]any{"metric_name": "response_time", "value": 1.2, "tags": map[string]string{"intent": "password_reset"}})
	require.False(t, res.IsError, resultText(t, res))
	require.Len(t, fb.points, 1)
	assert.Equal(t, "password_reset", fb.points[0].Tags["intent"])
}

func TestFindRelatedDepthArgument(t *testing.T) {
	fb := &fakeBackend{}
	cs := connect(t, fb)

	res := callTool(t, cs, "find_related", map[string]any{"node_id": "customer_002", "max_depth": 0})
	require.False(t, res.IsError, resultText(t, res))
	var rel apptype.RelatedResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rel))
	assert.Empty(t, rel.Edges)

	res = callTool(t, cs, "find_related", map[string]any{"node_id": "customer_002"})
	require.False(t, res.IsError, resultText(t, res))

	require.Len(t, fb.depths, 2)
	require.NotNil(t, fb.depths[0])
	assert.Equal(t, 0, *fb.depths[0])
	assert.Nil(t, fb.depths[1])
}

func TestReadTools(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	res := callTool(t, cs, "find_related", map[string]any{"node_id": "customer_123", "max_depth": 2})
	require.False(t, res.IsError, resultText(t, res))
	var rel apptype.RelatedResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rel))
	assert.Equal(t, "customer_123", rel.NodeID)
	require.Len(t, rel.Edges, 1)
	assert.InDelta(t, 0.5, rel.Edges[0].EffectiveStrength, 1e-9)

	res = callTool(t, cs, "query_metrics", map[string]any{"metric_name": "response_time", "window": "30m"})
	require.False(t, res.IsError, resultText(t, res))
	var mr apptype.MetricsResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &mr))
	assert.Equal(t, "30m", mr.Window)
	assert.Equal(t, 1, mr.Summary.Count)

	res = callTool(t, cs, "health_check", map[string]any{})
	require.False(t, res.IsError, resultText(t, res))
	var h apptype.HealthResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.Stores["vector"])
}
