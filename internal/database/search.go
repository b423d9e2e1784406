package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
)

// Both queries compute similarity as 1 - cosine distance, keep rows strictly
// above the threshold and break ties by rowid (insertion order).
const (
	exactSearchSQL = `SELECT id, title, content, category, tags, metadata, embedding, similarity
    FROM (
        SELECT d.id, d.title, d.content, d.category, d.tags, d.metadata, d.embedding,
               d.rowid AS seq,
               1 - vector_distance_cos(d.embedding, vector32(?)) AS similarity
        FROM documents d
    )
    WHERE similarity > ?
    ORDER BY similarity DESC, seq ASC
    LIMIT ?`

	annSearchSQL = `SELECT id, title, content, category, tags, metadata, embedding, similarity
    FROM (
        SELECT d.id, d.title, d.content, d.category, d.tags, d.metadata, d.embedding,
               d.rowid AS seq,
               1 - vector_distance_cos(d.embedding, vector32(?)) AS similarity
        FROM vector_top_k('idx_documents_embedding', vector32(?), ?) AS vt
        JOIN documents d ON d.rowid = vt.id
    )
    WHERE similarity > ?
    ORDER BY similarity DESC, seq ASC
    LIMIT ?`
)

// Search embeds the query and ranks documents by cosine similarity. When the
// ANN index is available it narrows candidates with vector_top_k; otherwise it
// scans every row.
func (v *VectorIndex) Search(ctx context.Context, query string, k int, threshold float64) ([]apptype.ScoredDocument, error) {
	done := metrics.TimeOp("db_search_similar")
	success := false
	defer func() { done(success) }()

	if k <= 0 {
		success = true
		return []apptype.ScoredDocument{}, nil
	}
	q, err := embeddings.EmbedOne(ctx, v.embedder, query, v.Dimensions())
	if err != nil {
		return nil, err
	}
	vec, err := vectorToString(q)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	useTopK := v.dm.capabilities().vectorTopK
	if useTopK {
		stmt, perr := v.dm.getPreparedStmt(ctx, annSearchSQL)
		if perr == nil {
			rows, err = stmt.QueryContext(ctx, vec, vec, k, threshold, k)
		} else {
			err = perr
		}
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "vector_top_k") {
			slog.Warn("ANN search unavailable, falling back to exact scan", "error", err)
			v.dm.disableTopK()
			useTopK = false
		} else if err != nil {
			return nil, unavailable("ann search", err)
		}
	}
	if !useTopK {
		stmt, perr := v.dm.getPreparedStmt(ctx, exactSearchSQL)
		if perr != nil {
			return nil, unavailable("prepare similarity search", perr)
		}
		rows, err = stmt.QueryContext(ctx, vec, threshold, k)
		if err != nil {
			return nil, unavailable("similarity search", err)
		}
	}
	defer rows.Close()

	hits := make([]apptype.ScoredDocument, 0, k)
	for rows.Next() {
		var sim float64
		doc, err := v.scanDocument(rows.Scan, &sim)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		hits = append(hits, apptype.ScoredDocument{Document: doc, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("similarity search", err)
	}
	success = true
	return hits, nil
}
