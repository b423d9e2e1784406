package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/timeseries"
)

// SeriesStore appends metric points to metric_points. Timestamps are stored
// as unix microseconds so window filters and ordering stay numeric.
type SeriesStore struct {
	dm    *DBManager
	now   timeseries.Clock
	limit int
}

var _ timeseries.Store = (*SeriesStore)(nil)

func NewSeriesStore(dm *DBManager, now timeseries.Clock, limit int) *SeriesStore {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = timeseries.DefaultLimit
	}
	return &SeriesStore{dm: dm, now: now, limit: limit}
}

func (s *SeriesStore) Record(ctx context.Context, p apptype.MetricPoint) error {
	done := metrics.TimeOp("db_record_metric")
	success := false
	defer func() { done(success) }()

	if err := p.Validate(); err != nil {
		return err
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}
	tags := p.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	stmt, err := s.dm.getPreparedStmt(ctx,
		`INSERT INTO metric_points (metric_name, recorded_at, value, tags) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return unavailable("prepare metric insert", err)
	}
	if _, err := stmt.ExecContext(ctx, p.Name, p.Timestamp.UnixMicro(), p.Value, string(tb)); err != nil {
		return unavailable("record metric", err)
	}
	success = true
	return nil
}

func (s *SeriesStore) QueryWindow(ctx context.Context, name string, window time.Duration) ([]apptype.MetricPoint, error) {
	done := metrics.TimeOp("db_query_window")
	success := false
	defer func() { done(success) }()

	cutoff := s.now().Add(-window).UnixMicro()
	stmt, err := s.dm.getPreparedStmt(ctx, `SELECT metric_name, recorded_at, value, tags
        FROM metric_points
        WHERE metric_name = ? AND recorded_at >= ?
        ORDER BY recorded_at DESC, id DESC
        LIMIT ?`)
	if err != nil {
		return nil, unavailable("prepare window query", err)
	}
	rows, err := stmt.QueryContext(ctx, name, cutoff, s.limit)
	if err != nil {
		return nil, unavailable("query window", err)
	}
	defer rows.Close()

	out := make([]apptype.MetricPoint, 0)
	for rows.Next() {
		var (
			p    apptype.MetricPoint
			ts   int64
			tags string
		)
		if err := rows.Scan(&p.Name, &ts, &p.Value, &tags); err != nil {
			return nil, unavailable("scan metric", err)
		}
		p.Timestamp = time.UnixMicro(ts).UTC()
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		if len(p.Tags) == 0 {
			p.Tags = nil
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query window", err)
	}
	success = true
	return out, nil
}
