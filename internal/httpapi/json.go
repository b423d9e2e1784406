package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
)

// maxBody bounds request bodies; document batches with embeddings are large.
const maxBody = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", apperr.ErrInvalidArgument, err)
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, apperr.ErrDimensionMismatch),
		errors.Is(err, apperr.ErrDanglingEdge):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrClassification):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrStoreUnavailable), errors.Is(err, apperr.ErrEmbedding):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
