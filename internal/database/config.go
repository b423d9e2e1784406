package database

import (
	"os"
	"strconv"
)

// Config holds the database configuration
type Config struct {
	// URL selects the engine. "file:", "libsql://", "http(s)://" go to libSQL;
	// "sqlite:<dsn>" goes to the pure-Go SQLite driver, which has no vector
	// support and serves only the graph and metric tables.
	URL           string `yaml:"url"`
	AuthToken     string `yaml:"auth_token"`
	EmbeddingDims int    `yaml:"embedding_dims"`

	MaxOpenConns   int `yaml:"max_open_conns"`
	MaxIdleConns   int `yaml:"max_idle_conns"`
	ConnMaxIdleSec int `yaml:"conn_max_idle_sec"`
	ConnMaxLifeSec int `yaml:"conn_max_life_sec"`
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./libsql.db"
	}
	cfg := &Config{
		URL:           url,
		AuthToken:     os.Getenv("LIBSQL_AUTH_TOKEN"),
		EmbeddingDims: 384,
	}
	if v, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMS")); err == nil && v > 0 {
		cfg.EmbeddingDims = v
	}
	return cfg
}
