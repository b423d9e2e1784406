package apptype

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is a knowledge-base entry indexed for similarity search.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	Category  string            `json:"category,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ScoredDocument pairs a document with its similarity to a query.
type ScoredDocument struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}

// PropertyKind enumerates the value types a node or edge property may hold.
type PropertyKind string

const (
	KindString PropertyKind = "string"
	KindNumber PropertyKind = "number"
	KindBool   PropertyKind = "bool"
)

// Property is a single typed property value.
type Property struct {
	Kind   PropertyKind `json:"kind"`
	String string       `json:"string,omitempty"`
	Number float64      `json:"number,omitempty"`
	Bool   bool         `json:"bool,omitempty"`
}

func StringProp(s string) Property  { return Property{Kind: KindString, String: s} }
func NumberProp(n float64) Property { return Property{Kind: KindNumber, Number: n} }
func BoolProp(b bool) Property      { return Property{Kind: KindBool, Bool: b} }

// Value returns the property as a plain Go value.
func (p Property) Value() any {
	switch p.Kind {
	case KindNumber:
		return p.Number
	case KindBool:
		return p.Bool
	default:
		return p.String
	}
}

// Properties is a tagged key-value map attached to graph nodes and edges.
type Properties map[string]Property

// Encode serializes properties for storage. Nil encodes as "{}".
func (p Properties) Encode() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}

// DecodeProperties is the inverse of Properties.Encode.
func DecodeProperties(raw string) (Properties, error) {
	if raw == "" {
		return Properties{}, nil
	}
	var p Properties
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if p == nil {
		p = Properties{}
	}
	return p, nil
}

// GraphNode is a typed entity in the relationship graph.
type GraphNode struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties,omitempty"`
}

// GraphEdge is a directed, typed, weighted relationship between two nodes.
type GraphEdge struct {
	SourceID         string     `json:"source_id"`
	TargetID         string     `json:"target_id"`
	RelationshipType string     `json:"relationship_type"`
	Strength         float64    `json:"strength"`
	Properties       Properties `json:"properties,omitempty"`
}

// EdgeKey is the natural key of an edge.
type EdgeKey struct {
	SourceID         string
	TargetID         string
	RelationshipType string
}

func (e GraphEdge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, TargetID: e.TargetID, RelationshipType: e.RelationshipType}
}

// RelatedEdge is an edge discovered by traversal, with the hop depth it was
// found at and its decayed strength along the best path.
type RelatedEdge struct {
	GraphEdge
	Depth             int     `json:"depth"`
	EffectiveStrength float64 `json:"effective_strength"`
}

// MetricPoint is one immutable time-series sample.
type MetricPoint struct {
	Name      string            `json:"metric_name"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Intent is the classifier's verdict on what the query asks for.
type Intent struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Entity is a typed value extracted from the query text.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Classification is the full classifier output.
type Classification struct {
	Intent   Intent   `json:"intent"`
	Entities []Entity `json:"entities"`
}

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageReport describes how a single pipeline stage went.
type StageReport struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// QueryResult is the fused answer for a single query. It is never persisted.
type QueryResult struct {
	Query         string           `json:"query"`
	Intent        Intent           `json:"intent"`
	Entities      []Entity         `json:"entities"`
	VectorHits    []ScoredDocument `json:"vector_hits"`
	GraphHits     []RelatedEdge    `json:"graph_hits"`
	RecentMetrics []MetricPoint    `json:"recent_metrics"`
	Context       string           `json:"context"`
	Confidence    float64          `json:"confidence"`
	Elapsed       time.Duration    `json:"elapsed"`
	Stages        []StageReport    `json:"stages"`
	Sources       []string         `json:"sources"`
}

// Stage returns the report for the named stage, if present.
func (r *QueryResult) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}
