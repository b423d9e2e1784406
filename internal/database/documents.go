package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

// VectorIndex stores documents in the libSQL documents table.
type VectorIndex struct {
	dm       *DBManager
	embedder embeddings.Provider
}

var _ vectorindex.Index = (*VectorIndex)(nil)

// NewVectorIndex needs a libSQL handle with vector support.
func NewVectorIndex(dm *DBManager, embedder embeddings.Provider) (*VectorIndex, error) {
	if !dm.SupportsVectors() {
		return nil, fmt.Errorf("%w: %s backend has no vector functions", apperr.ErrStoreUnavailable, dm.Driver())
	}
	return &VectorIndex{dm: dm, embedder: embedder}, nil
}

func (v *VectorIndex) Dimensions() int { return v.dm.EmbeddingDims() }

const upsertDocumentSQL = `INSERT INTO documents (id, title, content, category, tags, metadata, embedding, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, vector32(?), CURRENT_TIMESTAMP)
    ON CONFLICT(id) DO UPDATE SET
        title = excluded.title,
        content = excluded.content,
        category = excluded.category,
        tags = excluded.tags,
        metadata = excluded.metadata,
        embedding = excluded.embedding,
        updated_at = CURRENT_TIMESTAMP`

// Upsert replaces the document in full. The row keeps its rowid, which is
// what search uses to break ties in insertion order.
func (v *VectorIndex) Upsert(ctx context.Context, doc apptype.Document) error {
	done := metrics.TimeOp("db_upsert_document")
	success := false
	defer func() { done(success) }()

	doc, err := vectorindex.PrepareDocument(ctx, doc, v.embedder, v.Dimensions())
	if err != nil {
		return err
	}
	vec, err := vectorToString(doc.Embedding)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	tags, metadata, err := encodeDocumentFields(doc)
	if err != nil {
		return err
	}
	stmt, err := v.dm.getPreparedStmt(ctx, upsertDocumentSQL)
	if err != nil {
		return unavailable("prepare document upsert", err)
	}
	if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, doc.Content, doc.Category, tags, metadata, vec); err != nil {
		return unavailable("upsert document", err)
	}
	success = true
	return nil
}

func (v *VectorIndex) Get(ctx context.Context, id string) (apptype.Document, error) {
	row := v.dm.db.QueryRowContext(ctx,
		`SELECT id, title, content, category, tags, metadata, embedding FROM documents WHERE id = ?`, id)
	doc, err := v.scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return apptype.Document{}, fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return apptype.Document{}, unavailable("get document", err)
	}
	return doc, nil
}

func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.dm.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, unavailable("count documents", err)
	}
	return n, nil
}

func encodeDocumentFields(doc apptype.Document) (tags, metadata string, err error) {
	t := doc.Tags
	if t == nil {
		t = []string{}
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	m := doc.Metadata
	if m == nil {
		m = map[string]string{}
	}
	mb, err := json.Marshal(m)
	if err != nil {
		return "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(tb), string(mb), nil
}

// scanDocument reads the leading document columns; extra destinations are
// appended after the embedding.
func (v *VectorIndex) scanDocument(scan func(dest ...any) error, extra ...any) (apptype.Document, error) {
	var (
		doc            apptype.Document
		tags, metadata string
		blob           []byte
	)
	dest := append([]any{&doc.ID, &doc.Title, &doc.Content, &doc.Category, &tags, &metadata, &blob}, extra...)
	if err := scan(dest...); err != nil {
		return doc, err
	}
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return doc, fmt.Errorf("decode tags for %s: %w", doc.ID, err)
	}
	if len(doc.Tags) == 0 {
		doc.Tags = nil
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return doc, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	vec, err := decodeVector(blob, v.Dimensions())
	if err != nil {
		return doc, err
	}
	doc.Embedding = vec
	return doc, nil
}
