// Package engine orchestrates a context query: it classifies the text, fans
// out to the vector, graph and time-series stores, and fuses what comes back
// into a single scored result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/classifier"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/timeseries"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
	"golang.org/x/sync/errgroup"
)

// Stage names, as they appear in QueryResult.Stages.
const (
	StageClassify = "classify"
	StageVector   = "vector_search"
	StageGraph    = "graph_lookup"
	StageMetrics  = "metrics_query"
)

// Deps are the collaborators a query reads from.
type Deps struct {
	Vectors    vectorindex.Index
	Graph      graph.Store
	Series     timeseries.Store
	Classifier classifier.Classifier
}

func (d Deps) validate() error {
	var missing []string
	if d.Vectors == nil {
		missing = append(missing, "vectors")
	}
	if d.Graph == nil {
		missing = append(missing, "graph")
	}
	if d.Series == nil {
		missing = append(missing, "series")
	}
	if d.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: engine missing %v", apperr.ErrInvalidArgument, missing)
	}
	return nil
}

// graphTuner is implemented by graph stores that accept traversal options.
type graphTuner interface {
	Configure(graph.Options)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock pins the clock used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine answers context queries. It is safe for concurrent use.
type Engine struct {
	deps Deps
	cfg  atomic.Pointer[Config]
	log  *slog.Logger
	now  func() time.Time

	recording sync.WaitGroup
}

// New wires an engine over deps.
func New(deps Deps, cfg Config, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	e := &Engine{deps: deps, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	e.SetConfig(cfg)
	return e, nil
}

// Config returns the tunables in effect.
func (e *Engine) Config() Config { return *e.cfg.Load() }

// SetConfig swaps the tunables for later queries. Traversal decay and limit
// are handed to the graph store when it accepts them.
func (e *Engine) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	e.cfg.Store(&cfg)
	if t, ok := e.deps.Graph.(graphTuner); ok {
		t.Configure(cfg.graphOptions())
	}
}

// Close waits for in-flight metric writes.
func (e *Engine) Close() error {
	e.recording.Wait()
	return nil
}

type stageOutcome struct {
	report apptype.StageReport
}

func (s stageOutcome) failed() bool { return s.report.Status == apptype.StageFailed }

// Query runs one context query. Retrieval stages that fail are reported on
// the result and contribute nothing; only a classification failure or a
// cancelled ctx fails the call.
func (e *Engine) Query(ctx context.Context, text string) (*apptype.QueryResult, error) {
	start := e.now()
	cfg := e.Config()
	done := metrics.TimeTool("engine_query")
	success := false
	defer func() { done(success) }()

	cls, classifyReport, err := e.classify(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var (
		vectorHits    []apptype.ScoredDocument
		graphHits     []apptype.RelatedEdge
		responseTimes []apptype.MetricPoint
		recent        []apptype.MetricPoint
		vec, gr, met  stageOutcome
	)
	var g errgroup.Group
	g.Go(func() error {
		vectorHits, vec = e.vectorStage(ctx, text, cfg)
		return nil
	})
	g.Go(func() error {
		graphHits, gr = e.graphStage(ctx, cls.Entities, cfg)
		return nil
	})
	g.Go(func() error {
		responseTimes, recent, met = e.metricsStage(ctx, cfg)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	healthy := !vec.failed() && !gr.failed() && !met.failed()
	res := &apptype.QueryResult{
		Query:         text,
		Intent:        cls.Intent,
		Entities:      nonNil(cls.Entities),
		VectorHits:    vectorHits,
		GraphHits:     graphHits,
		RecentMetrics: recent,
		Context:       BuildContext(cls, vectorHits, graphHits, responseTimes),
		Confidence:    Score(cls.Intent, vectorHits, graphHits, healthy),
		Stages:        []apptype.StageReport{classifyReport, vec.report, gr.report, met.report},
		Sources:       make([]string, 0, len(vectorHits)),
	}
	for _, h := range vectorHits {
		res.Sources = append(res.Sources, orDefault(h.Document.Title, h.Document.ID))
	}
	res.Elapsed = e.now().Sub(start)
	metrics.Default().ObserveQueryConfidence(res.Confidence)

	e.recordAsync(ctx, res, cfg.RecordTimeout)
	success = true
	return res, nil
}

func (e *Engine) classify(ctx context.Context, text string) (apptype.Classification, apptype.StageReport, error) {
	start := e.now()
	cls, err := e.deps.Classifier.Classify(ctx, text)
	report := apptype.StageReport{Name: StageClassify, Duration: e.now().Sub(start)}
	if err != nil {
		report.Status = apptype.StageFailed
		report.Error = err.Error()
		metrics.Default().IncStageTotal(StageClassify, string(report.Status))
		if !errors.Is(err, apperr.ErrClassification) {
			err = fmt.Errorf("%w: %w", apperr.ErrClassification, err)
		}
		return cls, report, err
	}
	report.Status = apptype.StageCompleted
	report.Output = fmt.Sprintf("%s (%.2f), %d entities", cls.Intent.Type, cls.Intent.Confidence, len(cls.Entities))
	metrics.Default().IncStageTotal(StageClassify, string(report.Status))
	return cls, report, nil
}

// finish stamps a stage report and logs failures.
func (e *Engine) finish(name string, start time.Time, status apptype.StageStatus, output string, err error) stageOutcome {
	r := apptype.StageReport{Name: name, Status: status, Duration: e.now().Sub(start), Output: output}
	if err != nil {
		r.Error = err.Error()
		e.log.Warn("retrieval stage failed", "stage", name, "error", err)
	}
	metrics.Default().IncStageTotal(name, string(status))
	return stageOutcome{report: r}
}

func (e *Engine) vectorStage(ctx context.Context, text string, cfg Config) ([]apptype.ScoredDocument, stageOutcome) {
	start := e.now()
	hits, err := e.deps.Vectors.Search(ctx, text, cfg.VectorK, cfg.VectorThreshold)
	if err != nil {
		return []apptype.ScoredDocument{}, e.finish(StageVector, start, apptype.StageFailed, "", err)
	}
	if hits == nil {
		hits = []apptype.ScoredDocument{}
	}
	out := fmt.Sprintf("%d documents", len(hits))
	if len(hits) > 0 {
		out += ", top: " + orDefault(hits[0].Document.Title, hits[0].Document.ID)
	}
	return hits, e.finish(StageVector, start, apptype.StageCompleted, out, nil)
}

// graphStage looks up each eligible entity concurrently. The per-entity
// results are concatenated in entity order, duplicates included.
func (e *Engine) graphStage(ctx context.Context, entities []apptype.Entity, cfg Config) ([]apptype.RelatedEdge, stageOutcome) {
	start := e.now()
	var seeds []string
	for _, ent := range entities {
		if cfg.eligible(ent.Type) {
			seeds = append(seeds, ent.Value)
		}
	}
	if len(seeds) == 0 {
		return []apptype.RelatedEdge{}, e.finish(StageGraph, start, apptype.StageSkipped, "no graph entities", nil)
	}

	perSeed := make([][]apptype.RelatedEdge, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range seeds {
		g.Go(func() error {
			edges, err := e.deps.Graph.FindRelated(gctx, seed, cfg.GraphMaxDepth)
			if err != nil {
				return fmt.Errorf("find related %s: %w", seed, err)
			}
			perSeed[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []apptype.RelatedEdge{}, e.finish(StageGraph, start, apptype.StageFailed, "", err)
	}

	out := make([]apptype.RelatedEdge, 0)
	for _, edges := range perSeed {
		out = append(out, edges...)
	}
	return out, e.finish(StageGraph, start, apptype.StageCompleted,
		fmt.Sprintf("%d relationships from %d entities", len(out), len(seeds)), nil)
}

// metricsStage returns the response-time points on their own plus every
// point it read.
func (e *Engine) metricsStage(ctx context.Context, cfg Config) (responseTimes, all []apptype.MetricPoint, _ stageOutcome) {
	start := e.now()
	rt, err := e.deps.Series.QueryWindow(ctx, timeseries.MetricResponseTime, cfg.MetricsWindow)
	if err != nil {
		return nil, []apptype.MetricPoint{}, e.finish(StageMetrics, start, apptype.StageFailed, "", err)
	}
	conf, err := e.deps.Series.QueryWindow(ctx, timeseries.MetricConfidenceScore, cfg.MetricsWindow)
	if err != nil {
		return nil, []apptype.MetricPoint{}, e.finish(StageMetrics, start, apptype.StageFailed, "", err)
	}
	all = make([]apptype.MetricPoint, 0, len(rt)+len(conf))
	all = append(append(all, rt...), conf...)
	return rt, all, e.finish(StageMetrics, start, apptype.StageCompleted,
		fmt.Sprintf("%d response_time, %d confidence_score points", len(rt), len(conf)), nil)
}

// recordAsync writes the query's own metrics after the result is returned.
// The writes outlive ctx cancellation but not RecordTimeout.
func (e *Engine) recordAsync(ctx context.Context, res *apptype.QueryResult, timeout time.Duration) {
	now := e.now()
	point := func(name string, v float64) apptype.MetricPoint {
		return apptype.MetricPoint{Name: name, Timestamp: now, Value: v, Tags: map[string]string{"intent": res.Intent.Type}}
	}
	points := []apptype.MetricPoint{
		point(timeseries.MetricResponseTime, res.Elapsed.Seconds()),
		point(timeseries.MetricConfidenceScore, res.Confidence),
		point(timeseries.MetricQueryCount, 1),
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	e.recording.Add(1)
	go func() {
		defer e.recording.Done()
		defer cancel()
		for _, p := range points {
			if err := e.deps.Series.Record(rctx, p); err != nil {
				e.log.Warn("record query metric failed", "metric", p.Name, "error", err)
			}
		}
	}()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
