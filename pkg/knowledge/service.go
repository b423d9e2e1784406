// Package knowledge is the library-first entry point: it builds the stores,
// the embedder and the query engine from a config.Config and exposes the
// operations the MCP tools, the REST API and the CLI share.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/classifier"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/qdrantindex"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/server"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/timeseries"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

const healthTimeout = 3 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger handed to the engine. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock pins the clock of the metric store and the engine.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service provides the knowledge-context operations without any transport.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	now      func() time.Time
	db       *database.DBManager
	embedder embeddings.Provider
	vectors  vectorindex.Index
	qdrant   *qdrantindex.Index
	graph    *database.GraphStore
	series   *database.SeriesStore
	engine   *engine.Engine
}

var _ server.Backend = (*Service)(nil)

// NewService opens the database, selects the vector backend and wires the engine.
func NewService(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	dims := cfg.Database.EmbeddingDims

	emb, err := embeddings.New(cfg.Embeddings, dims)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	s.embedder = emb

	dbCfg := cfg.Database
	s.db, err = database.NewDBManager(&dbCfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Vector.Backend {
	case config.VectorMemory:
		s.vectors = vectorindex.NewMemory(emb, dims)
	case config.VectorQdrant:
		s.qdrant, err = qdrantindex.New(ctx, cfg.Vector.Qdrant, emb, dims)
		s.vectors = s.qdrant
	default:
		s.vectors, err = database.NewVectorIndex(s.db, emb)
	}
	if err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("vector backend %s: %w", cfg.Vector.Backend, err)
	}

	s.graph = database.NewGraphStore(s.db, graph.Options{})
	s.series = database.NewSeriesStore(s.db, s.now, timeseries.DefaultLimit)
	s.engine, err = engine.New(engine.Deps{
		Vectors:    s.vectors,
		Graph:      s.graph,
		Series:     s.series,
		Classifier: classifier.NewKeyword(cfg.Intents...),
	}, cfg.Engine, engine.WithLogger(s.log), engine.WithClock(s.now))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.log.Info("knowledge service ready",
		"vector_backend", cfg.Vector.Backend,
		"db_driver", s.db.Driver(),
		"embedder", emb.Name(),
		"dims", dims)
	return s, nil
}

// Close waits for pending metric writes and releases the stores.
func (s *Service) Close() error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	if s.qdrant != nil {
		errs = append(errs, s.qdrant.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Reconfigure swaps the engine tunables for later queries.
func (s *Service) Reconfigure(cfg engine.Config) {
	s.engine.SetConfig(cfg)
	s.log.Info("engine tunables reloaded",
		"vector_k", cfg.VectorK,
		"vector_threshold", cfg.VectorThreshold,
		"graph_max_depth", cfg.GraphMaxDepth)
}

// Query runs one context query through the engine.
func (s *Service) Query(ctx context.Context, text string) (*apptype.QueryResult, error) {
	return s.engine.Query(ctx, text)
}

// UpsertDocuments indexes docs in order and stops at the first failure.
// The count is the number stored before it.
func (s *Service) UpsertDocuments(ctx context.Context, docs []apptype.Document) (int, error) {
	for i, d := range docs {
		if err := s.vectors.Upsert(ctx, d); err != nil {
			return i, fmt.Errorf("document %q: %w", d.ID, err)
		}
	}
	return len(docs), nil
}

func (s *Service) UpsertNodes(ctx context.Context, nodes []apptype.GraphNode) (int, error) {
	for i, n := range nodes {
		if err := s.graph.UpsertNode(ctx, n); err != nil {
			return i, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	return len(nodes), nil
}

func (s *Service) UpsertEdges(ctx context.Context, edges []apptype.GraphEdge) (int, error) {
	for i, e := range edges {
		if err := s.graph.UpsertEdge(ctx, e); err != nil {
			return i, fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}
	return len(edges), nil
}

// FindRelated traverses from nodeID. A nil depth uses the engine's configured
// graph depth; an explicit 0 yields no edges.
func (s *Service) FindRelated(ctx context.Context, nodeID string, maxDepth *int) ([]apptype.RelatedEdge, error) {
	depth := s.engine.Config().GraphMaxDepth
	if maxDepth != nil {
		if *maxDepth < 0 {
			return nil, fmt.Errorf("%w: max depth must be non-negative, got %d", apperr.ErrInvalidArgument, *maxDepth)
		}
		depth = *maxDepth
	}
	return s.graph.FindRelated(ctx, nodeID, depth)
}

func (s *Service) RecordMetric(ctx context.Context, p apptype.MetricPoint) error {
	return s.series.Record(ctx, p)
}

// QueryMetrics reads a metric over window ("1h", "30m", "2d"; empty means 1h).
func (s *Service) QueryMetrics(ctx context.Context, name, window string) (apptype.MetricsResult, error) {
	d, err := timeseries.ParseWindow(window)
	if err != nil {
		return apptype.MetricsResult{}, err
	}
	points, err := s.series.QueryWindow(ctx, name, d)
	if err != nil {
		return apptype.MetricsResult{}, err
	}
	if window == "" {
		window = d.String()
	}
	return apptype.MetricsResult{
		Name:    name,
		Window:  window,
		Points:  points,
		Summary: timeseries.Summarize(points),
	}, nil
}

// Health probes each store. Status is "ok" when every store answers and
// "degraded" otherwise.
func (s *Service) Health(ctx context.Context) apptype.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	res := apptype.HealthResult{
		Name:          s.cfg.App.Name,
		Version:       buildinfo.Version,
		Status:        "ok",
		EmbeddingDims: s.vectors.Dimensions(),
		Embedder:      s.embedder.Name(),
		VectorBackend: s.cfg.Vector.Backend,
		Stores:        make(map[string]string, 3),
	}
	mark := func(store string, err error) {
		if err != nil {
			res.Status = "degraded"
			res.Stores[store] = err.Error()
			return
		}
		res.Stores[store] = "ok"
	}

	dbErr := s.db.Ping(ctx)
	mark("graph", dbErr)
	mark("timeseries", dbErr)
	n, err := s.vectors.Count(ctx)
	if err == nil && s.qdrant != nil {
		err = s.qdrant.Health(ctx)
	}
	mark("vector", err)
	res.Documents = n
	return res
}

func (s *Service) PoolStats() (inUse, idle int) { return s.db.PoolStats() }
