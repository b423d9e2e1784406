// Package apperr holds the sentinel errors shared by the stores, the engine
// and the transports. Match them with errors.Is.
package apperr

import "errors"

var (
	// ErrClassification aborts a query; nothing downstream is defined without an intent.
	ErrClassification = errors.New("classification failed")
	// ErrEmbedding means the embedder could not produce a vector.
	ErrEmbedding = errors.New("embedding failed")
	// ErrStoreUnavailable means a backing store could not serve the call.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDimensionMismatch rejects a single upsert whose embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidArgument   = errors.New("invalid argument")
	// ErrDanglingEdge rejects an edge whose endpoints are not both existing nodes.
	ErrDanglingEdge = errors.New("edge endpoint does not exist")
	ErrNotFound     = errors.New("not found")
)
