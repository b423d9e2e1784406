package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  log_level: debug
  log_format: json
  transport: http
  http:
    addr: ":9000"
    mcp_path: /mcp
database:
  url: "${TEST_DB_URL}"
  embedding_dims: 768
embeddings:
  provider: ollama
  host: http://localhost:11434
vector:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
engine:
  vector_k: 3
  vector_threshold: 0.5
  metrics_window: 30m
  graph_eligible_types: [customer]
intents:
  - intent: shipping
    keywords: [parcel, tracking]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LIBSQL_URL", "")
	t.Setenv("EMBEDDING_DIMS", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("TRANSPORT", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, cfg.App.Transport)
	assert.Equal(t, "file:./libsql.db", cfg.Database.URL)
	assert.Equal(t, 384, cfg.Database.EmbeddingDims)
	assert.Equal(t, VectorLibSQL, cfg.Vector.Backend)
	assert.Equal(t, 5, cfg.Engine.VectorK)
	assert.Equal(t, 0.6, cfg.Engine.VectorThreshold)
	assert.Equal(t, time.Hour, cfg.Engine.MetricsWindow)
}

func TestLoadFileWithExpansion(t *testing.T) {
	t.Setenv("TEST_DB_URL", "sqlite::memory:")
	t.Setenv("LIBSQL_URL", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("TRANSPORT", "")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.App.LogLevel)
	assert.Equal(t, TransportHTTP, cfg.App.Transport)
	assert.Equal(t, ":9000", cfg.App.HTTP.Addr)
	assert.Equal(t, "sqlite::memory:", cfg.Database.URL)
	assert.Equal(t, 768, cfg.Database.EmbeddingDims)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Vector.Qdrant.Host)
	assert.Equal(t, 3, cfg.Engine.VectorK)
	assert.Equal(t, 30*time.Minute, cfg.Engine.MetricsWindow)
	assert.Equal(t, []string{"customer"}, cfg.Engine.GraphEligibleTypes)
	// unset keys keep their defaults
	assert.Equal(t, 0.8, cfg.Engine.GraphDecayPerHop)
	require.Len(t, cfg.Intents, 1)
	assert.Equal(t, "shipping", cfg.Intents[0].Intent)
}

func TestExpansionCannotChangeStructure(t *testing.T) {
	t.Setenv("DB_URL", "sqlite::memory:")
	t.Setenv("QDRANT_PORT_NUM", "6335")
	t.Setenv("LIBSQL_URL", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("QDRANT_PORT", "")
	t.Setenv("INJECTED", "x\nvector:\n  backend: memory")
	cfg, err := Load(writeConfig(t, `
app:
  name: ${INJECTED}
database:
  url: ${DB_URL}
vector:
  backend: qdrant
  qdrant:
    host: localhost
    port: ${QDRANT_PORT_NUM}
`))
	require.NoError(t, err)
	assert.Equal(t, "sqlite::memory:", cfg.Database.URL)
	assert.Equal(t, 6335, cfg.Vector.Qdrant.Port)
	assert.Equal(t, VectorQdrant, cfg.Vector.Backend)
	assert.Equal(t, "x\nvector:\n  backend: memory", cfg.App.Name)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TEST_DB_URL", "sqlite::memory:")
	t.Setenv("LIBSQL_URL", "file:/data/ctx.db")
	t.Setenv("EMBEDDING_DIMS", "1536")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("TRANSPORT", "")
	t.Setenv("ENGINE_VECTOR_THRESHOLD", "0.75")
	t.Setenv("ENGINE_METRICS_WINDOW", "2h")
	t.Setenv("METRICS_PROMETHEUS", "true")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "file:/data/ctx.db", cfg.Database.URL)
	assert.Equal(t, 1536, cfg.Database.EmbeddingDims)
	assert.Equal(t, VectorMemory, cfg.Vector.Backend)
	assert.Equal(t, 0.75, cfg.Engine.VectorThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Engine.MetricsWindow)
	assert.True(t, cfg.Metrics.Prometheus)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("LIBSQL_URL", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("TRANSPORT", "")
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"unknown transport", "app:\n  transport: grpc\n", nil},
		{"unknown backend", "vector:\n  backend: faiss\n", nil},
		{"qdrant without host", "vector:\n  backend: qdrant\n  qdrant:\n    host: \"\"\n", nil},
		{"zero dims", "database:\n  embedding_dims: -4\n", nil},
		{"decay above one", "engine:\n  graph_decay_per_hop: 1.5\n", nil},
		{"intent without keywords", "intents:\n  - intent: x\n", nil},
		{"bad mcp path", "app:\n  http:\n    mcp_path: mcp\n", nil},
		{"bad env number", "", map[string]string{"ENGINE_VECTOR_K": "five"}},
		{"malformed yaml", "app: [", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	t.Setenv("LIBSQL_URL", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("TRANSPORT", "")
	t.Setenv("ENGINE_VECTOR_K", "")
	path := writeConfig(t, "engine:\n  vector_k: 3\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() { done <- Watch(ctx, path, logger, func(c *Config) { got <- c }) }()

	// give the watcher time to register before editing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  vector_k: [broken\n"), 0o600))
	time.Sleep(400 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  vector_k: 9\n"), 0o600))

	select {
	case c := <-got:
		assert.Equal(t, 9, c.Engine.VectorK)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.App.LogFormat = "json"
	_, ok := cfg.App.NewLogger(io.Discard).Handler().(*slog.JSONHandler)
	assert.True(t, ok)
	cfg.App.LogFormat = "text"
	_, ok = cfg.App.NewLogger(io.Discard).Handler().(*slog.TextHandler)
	assert.True(t, ok)
}
