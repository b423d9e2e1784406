package database

import "fmt"

// coreSchema is shared by every driver: the graph and the metric series.
// Every statement is safe to run against an already initialized database.
func coreSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
        node_id TEXT PRIMARY KEY,
        node_type TEXT NOT NULL,
        properties TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		`CREATE TABLE IF NOT EXISTS graph_edges (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_id TEXT NOT NULL,
        target_id TEXT NOT NULL,
        relationship_type TEXT NOT NULL,
        strength REAL NOT NULL DEFAULT 1.0 CHECK (strength > 0 AND strength <= 1),
        properties TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (source_id) REFERENCES graph_nodes(node_id),
        FOREIGN KEY (target_id) REFERENCES graph_nodes(node_id),
        UNIQUE (source_id, target_id, relationship_type)
    )`,

		`CREATE TABLE IF NOT EXISTS metric_points (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        metric_name TEXT NOT NULL,
        recorded_at INTEGER NOT NULL,
        value REAL NOT NULL,
        tags TEXT NOT NULL DEFAULT '{}'
    )`,

		`CREATE INDEX IF NOT EXISTS idx_graph_nodes_type ON graph_nodes(node_type)`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_points_name_time ON metric_points(metric_name, recorded_at DESC)`,
	}
}

// vectorSchema returns the documents DDL for the configured embedding
// dimension. It needs libSQL's vector extension.
func vectorSchema(embeddingDims int) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL,
        category TEXT NOT NULL DEFAULT '',
        tags TEXT NOT NULL DEFAULT '[]',
        metadata TEXT NOT NULL DEFAULT '{}',
        embedding F32_BLOB(%d) NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		`CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category)`,

		// ANN index used by vector_top_k
		`CREATE INDEX IF NOT EXISTS idx_documents_embedding ON documents(libsql_vector_idx(embedding))`,
	}
}
