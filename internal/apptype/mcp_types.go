package apptype

// QueryContextArgs represents the arguments for the query_context tool
type QueryContextArgs struct {
	Query string `json:"query" jsonschema:"Natural-language question to build fused context for."`
}

// UpsertDocumentsArgs represents the arguments for the upsert_documents tool
type UpsertDocumentsArgs struct {
	Documents []Document `json:"documents" jsonschema:"Documents to index. Existing ids are replaced in full."`
}

// UpsertNodesArgs represents the arguments for the upsert_nodes tool
type UpsertNodesArgs struct {
	Nodes []GraphNode `json:"nodes" jsonschema:"Graph nodes to create or replace."`
}

// UpsertEdgesArgs represents the arguments for the upsert_edges tool
type UpsertEdgesArgs struct {
	Edges []GraphEdge `json:"edges" jsonschema:"Graph edges to create or replace. Both endpoints must already exist."`
}

// FindRelatedArgs represents the arguments for the find_related tool
type FindRelatedArgs struct {
	NodeID   string `json:"node_id" jsonschema:"Seed node id to traverse from."`
	MaxDepth *int   `json:"max_depth,omitempty" jsonschema:"Maximum number of hops. Omit for the engine default; 0 returns no edges."`
}

// RecordMetricArgs represents the arguments for the record_metric tool
type RecordMetricArgs struct {
	Name  string            `json:"metric_name" jsonschema:"Metric name."`
	Value float64           `json:"value" jsonschema:"Sample value."`
	Tags  map[string]string `json:"tags,omitempty" jsonschema:"Optional string tags."`
}

// QueryMetricsArgs represents the arguments for the query_metrics tool
type QueryMetricsArgs struct {
	Name   string `json:"metric_name" jsonschema:"Metric name."`
	Window string `json:"window,omitempty" jsonschema:"Look-back window such as 30m, 1h or 2d (default 1h)."`
}

// HealthArgs is empty; health_check takes no input.
type HealthArgs struct{}

// CountResult reports how many items a write tool accepted.
type CountResult struct {
	Count int `json:"count"`
}

// RelatedResult is the structured output of find_related.
type RelatedResult struct {
	NodeID string        `json:"node_id"`
	Edges  []RelatedEdge `json:"edges"`
}

// MetricsResult is the structured output of query_metrics.
type MetricsResult struct {
	Name    string        `json:"metric_name"`
	Window  string        `json:"window"`
	Points  []MetricPoint `json:"points"`
	Summary MetricSummary `json:"summary"`
}

// MetricSummary aggregates a window of points.
type MetricSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Latest float64 `json:"latest"`
}

// HealthResult is returned by the health_check tool and the /healthz endpoint.
type HealthResult struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Status        string            `json:"status"`
	EmbeddingDims int               `json:"embedding_dims"`
	Embedder      string            `json:"embedder"`
	VectorBackend string            `json:"vector_backend"`
	Stores        map[string]string `json:"stores"`
	Documents     int               `json:"documents"`
}
