package engine

import (
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

// Config holds the tunables of a query. It may be replaced while queries run.
type Config struct {
	VectorK            int           `yaml:"vector_k"`
	VectorThreshold    float64       `yaml:"vector_threshold"`
	GraphMaxDepth      int           `yaml:"graph_max_depth"`
	GraphDecayPerHop   float64       `yaml:"graph_decay_per_hop"`
	GraphResultLimit   int           `yaml:"graph_result_limit"`
	GraphEligibleTypes []string      `yaml:"graph_eligible_types"`
	MetricsWindow      time.Duration `yaml:"metrics_window"`
	RecordTimeout      time.Duration `yaml:"record_timeout"`
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		VectorK:            vectorindex.DefaultK,
		VectorThreshold:    vectorindex.DefaultThreshold,
		GraphMaxDepth:      graph.DefaultMaxDepth,
		GraphDecayPerHop:   graph.DefaultDecay,
		GraphResultLimit:   graph.DefaultLimit,
		GraphEligibleTypes: []string{"customer", "product"},
		MetricsWindow:      time.Hour,
		RecordTimeout:      5 * time.Second,
	}
}

// withDefaults fills zero fields. VectorThreshold keeps an explicit zero.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VectorK <= 0 {
		c.VectorK = d.VectorK
	}
	if c.GraphMaxDepth <= 0 {
		c.GraphMaxDepth = d.GraphMaxDepth
	}
	if c.GraphDecayPerHop <= 0 || c.GraphDecayPerHop > 1 {
		c.GraphDecayPerHop = d.GraphDecayPerHop
	}
	if c.GraphResultLimit <= 0 {
		c.GraphResultLimit = d.GraphResultLimit
	}
	if c.GraphEligibleTypes == nil {
		c.GraphEligibleTypes = d.GraphEligibleTypes
	}
	if c.MetricsWindow <= 0 {
		c.MetricsWindow = d.MetricsWindow
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = d.RecordTimeout
	}
	return c
}

func (c Config) graphOptions() graph.Options {
	return graph.Options{
		MaxDepth: c.GraphMaxDepth,
		Decay:    c.GraphDecayPerHop,
		Limit:    c.GraphResultLimit,
	}
}

func (c Config) eligible(entityType string) bool {
	for _, t := range c.GraphEligibleTypes {
		if t == entityType {
			return true
		}
	}
	return false
}
