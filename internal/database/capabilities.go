package database

import (
	"context"
	"time"
)

// capFlags records what the connected engine can do
type capFlags struct {
	checked    bool
	vectorFns  bool
	vectorTopK bool
}

// detectCapabilities probes vector functions and the ANN entry point.
func (dm *DBManager) detectCapabilities(ctx context.Context) {
	caps := capFlags{checked: true}
	if dm.driver != driverLibSQL {
		dm.setCaps(caps)
		return
	}

	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	var d float64
	caps.vectorFns = dm.db.QueryRowContext(ctx2, "SELECT vector_distance_cos(vector32('[1.0, 0.0]'), vector32('[1.0, 0.0]'))").Scan(&d) == nil

	// Skip ANN probe for in-memory test URLs to avoid driver quirks
	if caps.vectorFns && !isMemoryDSN(dm.dsn) {
		ctx3, cancel3 := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel3()
		zero, _ := vectorToString(make([]float32, dm.config.EmbeddingDims))
		rows, err := dm.db.QueryContext(ctx3, "SELECT id FROM vector_top_k('idx_documents_embedding', vector32(?), 1) LIMIT 1", zero)
		if rows != nil {
			rows.Close()
		}
		caps.vectorTopK = err == nil
	}
	dm.setCaps(caps)
}

func (dm *DBManager) setCaps(c capFlags) {
	dm.capMu.Lock()
	dm.caps = c
	dm.capMu.Unlock()
}

func (dm *DBManager) capabilities() capFlags {
	dm.capMu.RLock()
	defer dm.capMu.RUnlock()
	return dm.caps
}

// disableTopK falls back to exact scans after the ANN path errored.
func (dm *DBManager) disableTopK() {
	dm.capMu.Lock()
	dm.caps.vectorTopK = false
	dm.capMu.Unlock()
}

// SupportsVectors reports whether the documents table and vector functions exist.
func (dm *DBManager) SupportsVectors() bool { return dm.capabilities().vectorFns }
