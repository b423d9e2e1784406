package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Host      string        `yaml:"host"`
	Timeout   time.Duration `yaml:"timeout"`
	AdaptMode string        `yaml:"adapt_mode"`
}

// New constructs the configured provider, adapted to dims.
// An empty provider name selects the local hashing embedder.
func New(cfg Config, dims int) (Provider, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedding dims must be positive, got %d", apperr.ErrInvalidArgument, dims)
	}
	var p Provider
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "", "hashing", "local":
		p = NewHashing(dims)
	case "openai", "localai", "llamacpp", "llama.cpp":
		op, err := newOpenAI(cfg, dims)
		if err != nil {
			return nil, err
		}
		p = op
	case "ollama":
		op, err := newOllama(cfg)
		if err != nil {
			return nil, err
		}
		p = op
	default:
		return nil, fmt.Errorf("%w: unknown embeddings provider %q", apperr.ErrInvalidArgument, cfg.Provider)
	}
	return WrapToDims(p, dims, cfg.AdaptMode), nil
}

// EmbedOne embeds a single text and checks that the vector has dims entries.
// Provider failures are reported as apperr.ErrEmbedding.
func EmbedOne(ctx context.Context, p Provider, text string, dims int) ([]float32, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no embeddings provider configured", apperr.ErrEmbedding)
	}
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrEmbedding, p.Name(), err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d vectors for 1 input", apperr.ErrEmbedding, p.Name(), len(vecs))
	}
	if len(vecs[0]) != dims {
		return nil, fmt.Errorf("%w: %s produced %d dims, index expects %d", apperr.ErrDimensionMismatch, p.Name(), len(vecs[0]), dims)
	}
	return vecs[0], nil
}
