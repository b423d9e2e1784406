package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/server"
)

// Handler holds API route handlers.
type Handler struct {
	backend server.Backend
	log     *slog.Logger
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// writeBatch reports how many items a batch write stored, including on failure.
func (h *Handler) writeBatch(w http.ResponseWriter, op string, n int, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(op+" failed", slog.String("error", err.Error()), slog.Int("stored", n))
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "count": n})
		return
	}
	writeJSON(w, http.StatusOK, apptype.CountResult{Count: n})
}

// Query handles POST /api/v1/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req apptype.QueryContextArgs
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "query", err)
		return
	}
	res, err := h.backend.Query(r.Context(), req.Query)
	if err != nil {
		h.fail(w, r, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpsertDocuments handles POST /api/v1/documents.
func (h *Handler) UpsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req apptype.UpsertDocumentsArgs
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "upsert documents", err)
		return
	}
	n, err := h.backend.UpsertDocuments(r.Context(), req.Documents)
	h.writeBatch(w, "upsert documents", n, err)
}

// UpsertNodes handles POST /api/v1/graph/nodes.
func (h *Handler) UpsertNodes(w http.ResponseWriter, r *http.Request) {
	var req apptype.UpsertNodesArgs
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "upsert nodes", err)
		return
	}
	n, err := h.backend.UpsertNodes(r.Context(), req.Nodes)
	h.writeBatch(w, "upsert nodes", n, err)
}

// UpsertEdges handles POST /api/v1/graph/edges.
func (h *Handler) UpsertEdges(w http.ResponseWriter, r *http.Request) {
	var req apptype.UpsertEdgesArgs
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "upsert edges", err)
		return
	}
	n, err := h.backend.UpsertEdges(r.Context(), req.Edges)
	h.writeBatch(w, "upsert edges", n, err)
}

// FindRelated handles GET /api/v1/graph/related/{id}?depth=N.
func (h *Handler) FindRelated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var depth *int
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("depth must be a non-negative integer"))
			return
		}
		depth = &d
	}
	edges, err := h.backend.FindRelated(r.Context(), id, depth)
	if err != nil {
		h.fail(w, r, "find related", err)
		return
	}
	writeJSON(w, http.StatusOK, apptype.RelatedResult{NodeID: id, Edges: edges})
}

// RecordMetric handles POST /api/v1/metrics.
func (h *Handler) RecordMetric(w http.ResponseWriter, r *http.Request) {
	var p apptype.MetricPoint
	if err := decodeJSON(r, &p); err != nil {
		h.fail(w, r, "record metric", err)
		return
	}
	if err := h.backend.RecordMetric(r.Context(), p); err != nil {
		h.fail(w, r, "record metric", err)
		return
	}
	writeJSON(w, http.StatusCreated, apptype.CountResult{Count: 1})
}

// QueryMetrics handles GET /api/v1/metrics/{name}?window=1h.
func (h *Handler) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := h.backend.QueryMetrics(r.Context(), name, r.URL.Query().Get("window"))
	if err != nil {
		h.fail(w, r, "query metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Health handles GET /healthz. A degraded service answers 503 with the same body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	res := h.backend.Health(r.Context())
	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}
