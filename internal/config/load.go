package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file at path (when
// path is not empty) with ${VAR} expansion, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		expandScalars(&doc)
		if doc.Kind != 0 {
			if err := doc.Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// expandScalars substitutes ${VAR} in scalar values only, so an expanded
// value can never change the document structure. Unquoted scalars that change
// are re-resolved, letting "${PORT}" decode into an int.
func expandScalars(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		if v := os.ExpandEnv(n.Value); v != n.Value {
			n.Value = v
			if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
				n.Tag = ""
			}
		}
		return
	}
	for _, c := range n.Content {
		expandScalars(c)
	}
}

// applyEnv overlays the environment variables the service has always read.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	str("LOG_FORMAT", &cfg.App.LogFormat)
	str("TRANSPORT", &cfg.App.Transport)
	str("HTTP_ADDR", &cfg.App.HTTP.Addr)

	str("LIBSQL_URL", &cfg.Database.URL)
	str("LIBSQL_AUTH_TOKEN", &cfg.Database.AuthToken)
	integer("EMBEDDING_DIMS", &cfg.Database.EmbeddingDims)
	integer("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	integer("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)

	str("EMBEDDINGS_PROVIDER", &cfg.Embeddings.Provider)
	str("EMBEDDINGS_MODEL", &cfg.Embeddings.Model)
	str("EMBEDDINGS_ADAPT_MODE", &cfg.Embeddings.AdaptMode)
	str("OPENAI_API_KEY", &cfg.Embeddings.APIKey)
	str("OPENAI_BASE_URL", &cfg.Embeddings.BaseURL)
	str("OLLAMA_HOST", &cfg.Embeddings.Host)

	str("VECTOR_BACKEND", &cfg.Vector.Backend)
	str("QDRANT_HOST", &cfg.Vector.Qdrant.Host)
	integer("QDRANT_PORT", &cfg.Vector.Qdrant.Port)
	str("QDRANT_API_KEY", &cfg.Vector.Qdrant.APIKey)
	str("QDRANT_COLLECTION", &cfg.Vector.Qdrant.Collection)
	boolean("QDRANT_USE_TLS", &cfg.Vector.Qdrant.UseTLS)

	integer("ENGINE_VECTOR_K", &cfg.Engine.VectorK)
	float("ENGINE_VECTOR_THRESHOLD", &cfg.Engine.VectorThreshold)
	integer("ENGINE_GRAPH_MAX_DEPTH", &cfg.Engine.GraphMaxDepth)
	float("ENGINE_GRAPH_DECAY_PER_HOP", &cfg.Engine.GraphDecayPerHop)
	integer("ENGINE_GRAPH_RESULT_LIMIT", &cfg.Engine.GraphResultLimit)
	duration("ENGINE_METRICS_WINDOW", &cfg.Engine.MetricsWindow)
	duration("ENGINE_RECORD_TIMEOUT", &cfg.Engine.RecordTimeout)

	boolean("METRICS_PROMETHEUS", &cfg.Metrics.Prometheus)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	return errors.Join(errs...)
}
