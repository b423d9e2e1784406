// Package server exposes the knowledge-context engine as MCP tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
)

// Backend is what the tools call into.
type Backend interface {
	Query(ctx context.Context, text string) (*apptype.QueryResult, error)
	UpsertDocuments(ctx context.Context, docs []apptype.Document) (int, error)
	UpsertNodes(ctx context.Context, nodes []apptype.GraphNode) (int, error)
	UpsertEdges(ctx context.Context, edges []apptype.GraphEdge) (int, error)
	FindRelated(ctx context.Context, nodeID string, maxDepth *int) ([]apptype.RelatedEdge, error)
	RecordMetric(ctx context.Context, p apptype.MetricPoint) error
	QueryMetrics(ctx context.Context, name, window string) (apptype.MetricsResult, error)
	Health(ctx context.Context) apptype.HealthResult
	PoolStats() (inUse, idle int)
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *MCPServer) {
		if l != nil {
			s.log = l
		}
	}
}

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server  *mcp.Server
	backend Backend
	log     *slog.Logger
}

// NewMCPServer creates a new MCP server with every tool registered.
func NewMCPServer(name string, backend Backend, opts ...Option) *MCPServer {
	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: buildinfo.Version,
		}, nil),
		backend: backend,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.setupToolHandlers()
	return s
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_context",
		Description: "Classify a question, search documents, walk the relationship graph and read recent metrics, then return the fused context with a confidence score.",
	}, s.handleQueryContext)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upsert_documents",
		Description: "Index knowledge-base documents. Missing embeddings are computed; existing ids are replaced.",
	}, s.handleUpsertDocuments)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upsert_nodes",
		Description: "Create or replace typed graph nodes.",
	}, s.handleUpsertNodes)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upsert_edges",
		Description: "Create or replace weighted relationships between existing nodes. Strength must be in (0, 1].",
	}, s.handleUpsertEdges)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_related",
		Description: "List relationships reachable from a node within max_depth hops, strongest first, with per-hop decay applied.",
	}, s.handleFindRelated)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_metric",
		Description: "Append one time-series sample.",
	}, s.handleRecordMetric)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_metrics",
		Description: "Read a metric over a recent window, newest first, with a summary.",
	}, s.handleQueryMetrics)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "health_check",
		Description: "Report server version and per-store health.",
	}, s.handleHealth)
}

// jsonResult renders v as the tool's text content. Used for outputs that
// carry timestamps, which have no structured schema.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil, nil
}

func (s *MCPServer) handleQueryContext(ctx context.Context, _ *mcp.CallToolRequest, args apptype.QueryContextArgs) (*mcp.CallToolResult, any, error) {
	done := metrics.TimeTool("query_context")
	var success bool
	defer func() { done(success) }()

	res, err := s.backend.Query(ctx, args.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	s.log.Debug("query answered", "intent", res.Intent.Type, "confidence", res.Confidence, "elapsed", res.Elapsed)
	success = true
	return jsonResult(res)
}

func (s *MCPServer) handleUpsertDocuments(ctx context.Context, _ *mcp.CallToolRequest, args apptype.UpsertDocumentsArgs) (*mcp.CallToolResult, apptype.CountResult, error) {
	done := metrics.TimeTool("upsert_documents")
	var success bool
	defer func() { done(success) }()

	n, err := s.backend.UpsertDocuments(ctx, args.Documents)
	if err != nil {
		return nil, apptype.CountResult{}, fmt.Errorf("failed to upsert documents (%d stored): %w", n, err)
	}
	success = true
	return nil, apptype.CountResult{Count: n}, nil
}

func (s *MCPServer) handleUpsertNodes(ctx context.Context, _ *mcp.CallToolRequest, args apptype.UpsertNodesArgs) (*mcp.CallToolResult, apptype.CountResult, error) {
	done := metrics.TimeTool("upsert_nodes")
	var success bool
	defer func() { done(success) }()

	n, err := s.backend.UpsertNodes(ctx, args.Nodes)
	if err != nil {
		return nil, apptype.CountResult{}, fmt.Errorf("failed to upsert nodes (%d stored): %w", n, err)
	}
	success = true
	return nil, apptype.CountResult{Count: n}, nil
}

func (s *MCPServer) handleUpsertEdges(ctx context.Context, _ *mcp.CallToolRequest, args apptype.UpsertEdgesArgs) (*mcp.CallToolResult, apptype.CountResult, error) {
	done := metrics.TimeTool("upsert_edges")
	var success bool
	defer func() { done(success) }()

	n, err := s.backend.UpsertEdges(ctx, args.Edges)
	if err != nil {
		return nil, apptype.CountResult{}, fmt.Errorf("failed to upsert edges (%d stored): %w", n, err)
	}
	success = true
	return nil, apptype.CountResult{Count: n}, nil
}

func (s *MCPServer) handleFindRelated(ctx context.Context, _ *mcp.CallToolRequest, args apptype.FindRelatedArgs) (*mcp.CallToolResult, any, error) {
	done := metrics.TimeTool("find_related")
	var success bool
	defer func() { done(success) }()

	edges, err := s.backend.FindRelated(ctx, args.NodeID, args.MaxDepth)
	if err != nil {
		return nil, nil, fmt.Errorf("find_related failed: %w", err)
	}
	success = true
	return jsonResult(apptype.RelatedResult{NodeID: args.NodeID, Edges: edges})
}

func (s *MCPServer) handleRecordMetric(ctx context.Context, _ *mcp.CallToolRequest, args apptype.RecordMetricArgs) (*mcp.CallToolResult, apptype.CountResult, error) {
	done := metrics.TimeTool("record_metric")
	var success bool
	defer func() { done(success) }()

	if err := s.backend.RecordMetric(ctx, apptype.MetricPoint{Name: args.Name, Value: args.Value, Tags: args.Tags}); err != nil {
		return nil, apptype.CountResult{}, fmt.Errorf("failed to record metric: %w", err)
	}
	success = true
	return nil, apptype.CountResult{Count: 1}, nil
}

func (s *MCPServer) handleQueryMetrics(ctx context.Context, _ *mcp.CallToolRequest, args apptype.QueryMetricsArgs) (*mcp.CallToolResult, any, error) {
	done := metrics.TimeTool("query_metrics")
	var success bool
	defer func() { done(success) }()

	res, err := s.backend.QueryMetrics(ctx, args.Name, args.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("query_metrics failed: %w", err)
	}
	success = true
	return jsonResult(res)
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(ctx context.Context, _ *mcp.CallToolRequest, _ apptype.HealthArgs) (*mcp.CallToolResult, apptype.HealthResult, error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()
	inUse, idle := s.backend.PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	return nil, s.backend.Health(ctx), nil
}

// reportPoolStats samples pool gauges until ctx is done.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inUse, idle := s.backend.PoolStats()
			metrics.Default().ObservePoolStats(inUse, idle)
		}
	}
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *MCPServer) Run(ctx context.Context) error {
	go s.reportPoolStats(ctx)
	s.log.Info("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves MCP over streamable HTTP. The caller mounts it and
// owns the listener; pool stats are sampled until ctx is done.
func (s *MCPServer) HTTPHandler(ctx context.Context) http.Handler {
	go s.reportPoolStats(ctx)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, &mcp.StreamableHTTPOptions{})
}

// Connect attaches the server to an arbitrary transport, such as one half
// of an in-memory pair.
func (s *MCPServer) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
