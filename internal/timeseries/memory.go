package timeseries

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

// MemoryStore keeps points in process, grouped by metric name in arrival order.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string][]apptype.MetricPoint
	now    Clock
	limit  int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil clock means time.Now and a
// non-positive limit means DefaultLimit.
func NewMemoryStore(now Clock, limit int) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{series: make(map[string][]apptype.MetricPoint), now: now, limit: limit}
}

func (s *MemoryStore) Record(_ context.Context, p apptype.MetricPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}
	p.Tags = maps.Clone(p.Tags)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[p.Name] = append(s.series[p.Name], p)
	return nil
}

func (s *MemoryStore) QueryWindow(ctx context.Context, name string, window time.Duration) ([]apptype.MetricPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-window)
	s.mu.RLock()
	src := s.series[name]
	out := make([]apptype.MetricPoint, 0, min(len(src), s.limit))
	// walk newest arrivals first so equal timestamps come back newest first
	for i := len(src) - 1; i >= 0; i-- {
		if !src[i].Timestamp.Before(cutoff) {
			out = append(out, src[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	return out, nil
}
