package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"
)

type ollamaProvider struct {
	endpoint string
	model    string
	dims     int
	http     *http.Client
}

func newOllama(cfg Config) (*ollamaProvider, error) {
	host := cfg.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		return nil, fmt.Errorf("ollama embeddings: host not set")
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: parse host: %w", err)
	}
	base.Path = path.Join(base.Path, "/api/embed")
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	// Cold model loads can take a while.
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ollamaProvider{
		endpoint: base.String(),
		model:    model,
		dims:     768,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *ollamaProvider) Name() string    { return "ollama" }
func (p *ollamaProvider) Dimensions() int { return p.dims }

func (p *ollamaProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(map[string]any{"model": p.model, "input": inputs})
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, body)
	if err != nil && (isTimeout(err) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() == nil {
		// one retry for a cold start
		resp, err = p.post(ctx, body)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var b struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		if b.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", b.Error)
		}
		return nil, fmt.Errorf("ollama http status: %s", resp.Status)
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama decode: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func (p *ollamaProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.http.Do(req)
}

// isTimeout returns true if the error represents a timeout
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
