package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
)

// getPreparedStmt returns a cached prepared statement, preparing it on first use
func (dm *DBManager) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	dm.stmtMu.RLock()
	stmt, ok := dm.stmtCache[sqlText]
	dm.stmtMu.RUnlock()
	if ok {
		metrics.Default().IncStmtCacheHit("prepare")
		return stmt, nil
	}
	metrics.Default().IncStmtCacheMiss("prepare")

	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := dm.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtCache[sqlText] = stmt
	return stmt, nil
}
