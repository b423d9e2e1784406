// Package config loads the service configuration from YAML with environment
// expansion and overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/classifier"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/qdrantindex"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

// Transports and vector backends.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	VectorLibSQL = "libsql"
	VectorMemory = "memory"
	VectorQdrant = "qdrant"
)

// Config represents the application configuration.
type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   database.Config   `yaml:"database"`
	Embeddings embeddings.Config `yaml:"embeddings"`
	Vector     VectorConfig      `yaml:"vector"`
	Engine     engine.Config     `yaml:"engine"`
	Intents    []classifier.Rule `yaml:"intents"`
	Metrics    metrics.Config    `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.URL, validation.Required),
		validation.Field(&c.Database.EmbeddingDims, validation.Required, validation.Min(1), validation.Max(65536)),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := validation.ValidateStruct(&c.Engine,
		validation.Field(&c.Engine.VectorK, validation.Min(0)),
		validation.Field(&c.Engine.VectorThreshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&c.Engine.GraphMaxDepth, validation.Min(0)),
		validation.Field(&c.Engine.GraphDecayPerHop, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Engine.GraphResultLimit, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for i, r := range c.Intents {
		if err := validation.ValidateStruct(&r,
			validation.Field(&r.Intent, validation.Required),
			validation.Field(&r.Keywords, validation.Required),
		); err != nil {
			return fmt.Errorf("intents[%d]: %w", i, err)
		}
	}
	return nil
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Name      string     `yaml:"name"`
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	Transport string     `yaml:"transport"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In("json", "text")),
		validation.Field(&c.Transport, validation.Required, validation.In(TransportStdio, TransportHTTP)),
		validation.Field(&c.HTTP),
	)
}

// HTTPConfig holds HTTP listener configuration.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	MCPPath         string        `yaml:"mcp_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Validate validates the HTTP configuration.
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.MCPPath, validation.Required, validation.By(func(v any) error {
			if !strings.HasPrefix(v.(string), "/") {
				return fmt.Errorf("must start with /")
			}
			return nil
		})),
	)
}

// VectorConfig selects the document index backend.
type VectorConfig struct {
	Backend string             `yaml:"backend"`
	Qdrant  qdrantindex.Config `yaml:"qdrant"`
}

// Validate validates the vector configuration.
func (c *VectorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(VectorLibSQL, VectorMemory, VectorQdrant)),
	); err != nil {
		return err
	}
	if c.Backend != VectorQdrant {
		return nil
	}
	return validation.ValidateStruct(&c.Qdrant,
		validation.Field(&c.Qdrant.Host, validation.Required),
		validation.Field(&c.Qdrant.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "mcp-context-libsql-go",
			LogLevel:  slog.LevelInfo,
			LogFormat: "text",
			Transport: TransportStdio,
			HTTP: HTTPConfig{
				Addr:            ":8080",
				MCPPath:         "/mcp",
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Database: database.Config{
			URL:           "file:./libsql.db",
			EmbeddingDims: vectorindex.DefaultDimensions,
		},
		Vector: VectorConfig{
			Backend: VectorLibSQL,
			Qdrant: qdrantindex.Config{
				Host:       "localhost",
				Port:       6334,
				Collection: qdrantindex.DefaultCollection,
			},
		},
		Engine: engine.DefaultConfig(),
		Metrics: metrics.Config{
			Addr: ":9090",
		},
	}
}

// NewLogger builds the process logger. Logs go to w, which must not be
// stdout when MCP speaks over stdio.
func (c *AppConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
