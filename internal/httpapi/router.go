// Package httpapi implements the REST API using chi.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/server"
)

// Options selects the optional mounts.
type Options struct {
	// MCP, if non-nil, is mounted at MCPPath.
	MCP     http.Handler
	MCPPath string
	// Metrics, if non-nil, is served at GET /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(b server.Backend, opts Options) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{backend: b, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.MCP != nil {
		r.Handle(opts.MCPPath, opts.MCP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/documents", h.UpsertDocuments)
		r.Post("/graph/nodes", h.UpsertNodes)
		r.Post("/graph/edges", h.UpsertEdges)
		r.Get("/graph/related/{id}", h.FindRelated)
		r.Post("/metrics", h.RecordMetric)
		r.Get("/metrics/{name}", h.QueryMetrics)
	})
	return r
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
