// Package timeseries stores append-only operational metrics and answers
// recent-window reads.
package timeseries

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

// DefaultLimit caps the number of points a window read returns.
const DefaultLimit = 100

// Well-known metric names written by the engine.
const (
	MetricResponseTime    = "response_time"
	MetricConfidenceScore = "confidence_score"
	MetricQueryCount      = "query_count"
)

// Store is the contract every time-series backend satisfies.
type Store interface {
	// Record appends a point. A zero timestamp is stamped with the store clock.
	Record(ctx context.Context, p apptype.MetricPoint) error
	// QueryWindow returns points named name with timestamp >= now-window,
	// newest first, capped at the store limit.
	QueryWindow(ctx context.Context, name string, window time.Duration) ([]apptype.MetricPoint, error)
}

// Clock returns the current time. Stores take one so tests can pin "now".
type Clock func() time.Time

// ParseWindow accepts Go durations ("90s", "1h30m") plus a day suffix ("2d").
// An empty string means one hour.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Hour, nil
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: window %q", apperr.ErrInvalidArgument, s)
		}
		d = time.Duration(n * float64(24*time.Hour))
	} else {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: window %q", apperr.ErrInvalidArgument, s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: window %q must be positive", apperr.ErrInvalidArgument, s)
	}
	return d, nil
}

// Summarize aggregates points. Latest is the first point, since window reads
// are newest first.
func Summarize(points []apptype.MetricPoint) apptype.MetricSummary {
	if len(points) == 0 {
		return apptype.MetricSummary{}
	}
	sum := apptype.MetricSummary{
		Count:  len(points),
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
		Latest: points[0].Value,
	}
	var total float64
	for _, p := range points {
		total += p.Value
		sum.Min = math.Min(sum.Min, p.Value)
		sum.Max = math.Max(sum.Max, p.Value)
	}
	sum.Mean = total / float64(len(points))
	return sum
}

// Mean averages the values of at most n leading points. n <= 0 means all.
func Mean(points []apptype.MetricPoint, n int) (float64, bool) {
	if n > 0 && len(points) > n {
		points = points[:n]
	}
	if len(points) == 0 {
		return 0, false
	}
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total / float64(len(points)), true
}
