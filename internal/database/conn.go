package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
)

const (
	driverLibSQL = "libsql"
	driverSQLite = "sqlite"
)

// DBManager owns the pooled connection handle shared by the SQL-backed stores.
// Each store touches only its own tables.
type DBManager struct {
	config *Config
	driver string
	dsn    string
	db     *sql.DB

	capMu sync.RWMutex
	caps  capFlags

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt
}

// NewDBManager opens the database, tunes the pool and applies the schema.
func NewDBManager(config *Config) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("%w: embedding dims must be between 1 and 65536 inclusive, got %d", apperr.ErrInvalidArgument, config.EmbeddingDims)
	}
	driver, dsn, err := resolveDSN(config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s connector: %w", driver, err)
	}
	dm := &DBManager{
		config:    config,
		driver:    driver,
		dsn:       dsn,
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}
	dm.applyPool()

	ctx := context.Background()
	if err := dm.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if driver == driverLibSQL {
		if dbDims := detectDBEmbeddingDims(db); dbDims > 0 && dbDims != config.EmbeddingDims {
			db.Close()
			return nil, fmt.Errorf("%w: documents table was created with %d dims, config asks for %d", apperr.ErrDimensionMismatch, dbDims, config.EmbeddingDims)
		}
	}
	dm.detectCapabilities(ctx)

	inUse, idle := dm.PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	return dm, nil
}

// resolveDSN picks the driver from the URL scheme and folds the auth token
// into remote libSQL URLs.
func resolveDSN(cfg *Config) (driver, dsn string, err error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", "", fmt.Errorf("%w: database url is empty", apperr.ErrInvalidArgument)
	}
	if rest, ok := strings.CutPrefix(raw, "sqlite:"); ok {
		if rest == "" {
			rest = ":memory:"
		}
		if !isMemoryDSN(rest) && !strings.Contains(rest, "_pragma") {
			sep := "?"
			if strings.Contains(rest, "?") {
				sep = "&"
			}
			rest += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		return driverSQLite, rest, nil
	}
	if strings.HasPrefix(raw, "file:") || cfg.AuthToken == "" {
		return driverLibSQL, raw, nil
	}
	u, perr := url.Parse(raw)
	if perr != nil {
		return "", "", fmt.Errorf("%w: parse database url: %w", apperr.ErrInvalidArgument, perr)
	}
	q := u.Query()
	q.Set("authToken", cfg.AuthToken)
	u.RawQuery = q.Encode()
	return driverLibSQL, u.String(), nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (dm *DBManager) applyPool() {
	// a private in-memory SQLite database lives and dies with its single connection
	if dm.driver == driverSQLite && isMemoryDSN(dm.dsn) {
		dm.db.SetMaxOpenConns(1)
		dm.db.SetMaxIdleConns(1)
		dm.db.SetConnMaxLifetime(0)
		dm.db.SetConnMaxIdleTime(0)
		return
	}
	if dm.config.MaxOpenConns > 0 {
		dm.db.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		dm.db.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		dm.db.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		dm.db.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}
}

// initialize creates tables and indexes if they don't exist. Concurrent
// startups against the same file can see a locked database, so busy errors
// are retried with backoff.
func (dm *DBManager) initialize(ctx context.Context) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()

	statements := coreSchema()
	if dm.driver == driverLibSQL {
		statements = append(statements, vectorSchema(dm.config.EmbeddingDims)...)
	}
	operation := func() error {
		err := dm.applySchema(ctx, statements)
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	success = true
	return nil
}

func (dm *DBManager) applySchema(ctx context.Context, statements []string) error {
	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "database is locked") || strings.Contains(low, "sqlite_busy") || strings.Contains(low, "database is busy")
}

// detectDBEmbeddingDims reads F32_BLOB(n) back from the stored documents DDL.
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&sqlText)
	low := strings.ToLower(sqlText)
	idx := strings.Index(low, "f32_blob(")
	if idx < 0 {
		return 0
	}
	rest := low[idx+len("f32_blob("):]
	end := strings.Index(rest, ")")
	if end <= 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Driver reports which SQL driver backs this manager.
func (dm *DBManager) Driver() string { return dm.driver }

// EmbeddingDims is the fixed vector dimension of the documents table.
func (dm *DBManager) EmbeddingDims() int { return dm.config.EmbeddingDims }

// PoolStats returns in-use and idle connection counts.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	s := dm.db.Stats()
	return s.InUse, s.Idle
}

// Ping checks that the database answers.
func (dm *DBManager) Ping(ctx context.Context) error {
	if err := dm.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases cached statements and the pool.
func (dm *DBManager) Close() error {
	dm.stmtMu.Lock()
	for k, stmt := range dm.stmtCache {
		_ = stmt.Close()
		delete(dm.stmtCache, k)
	}
	dm.stmtMu.Unlock()
	return dm.db.Close()
}

// unavailable marks a driver failure as a store outage.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrStoreUnavailable, op, err)
}
