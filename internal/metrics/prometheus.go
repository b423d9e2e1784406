//go:build !noprom

package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "context_engine"

type promRecorder struct {
	dbTotal     *prom.CounterVec
	dbSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	stmtCache   *prom.CounterVec
	poolConns   *prom.GaugeVec
	stageTotal  *prom.CounterVec
	confidence  prom.Histogram
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) IncStmtCacheHit(kind string) {
	p.stmtCache.WithLabelValues(kind, "hit").Inc()
}

func (p *promRecorder) IncStmtCacheMiss(kind string) {
	p.stmtCache.WithLabelValues(kind, "miss").Inc()
}

func (p *promRecorder) ObservePoolStats(inUse, idle int) {
	p.poolConns.WithLabelValues("in_use").Set(float64(inUse))
	p.poolConns.WithLabelValues("idle").Set(float64(idle))
}

func (p *promRecorder) IncStageTotal(stage, status string) {
	p.stageTotal.WithLabelValues(stage, status).Inc()
}

func (p *promRecorder) ObserveQueryConfidence(confidence float64) {
	p.confidence.Observe(confidence)
}

func newPromRecorder() *promRecorder {
	return &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "db_ops_total",
			Help:      "Total number of store operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "db_op_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool and API handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_seconds",
			Help:      "Tool and API handler duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"tool", "success"}),
		stmtCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stmt_cache_total",
			Help:      "Prepared statement cache lookups",
		}, []string{"kind", "result"}),
		poolConns: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "Database pool connections by state",
		}, []string{"state"}),
		stageTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_stage_total",
			Help:      "Retrieval stage outcomes",
		}, []string{"stage", "status"}),
		confidence: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_confidence",
			Help:      "Confidence of answered context queries",
			Buckets:   prom.LinearBuckets(0, 0.1, 10),
		}),
	}
}

func enablePrometheus() http.Handler {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	registry.MustRegister(
		p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds,
		p.stmtCache, p.poolConns, p.stageTotal, p.confidence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	SetRecorder(p)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
