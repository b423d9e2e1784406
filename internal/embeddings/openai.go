package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "text-embedding-3-small"

// openAIProvider calls the OpenAI embeddings endpoint, or any server that
// speaks the same API (LocalAI, llama.cpp) when BaseURL is set.
type openAIProvider struct {
	client *openai.Client
	model  string
	dims   int
	// sendDims requests reduced dimensionality; only text-embedding-3 models accept it.
	sendDims bool
}

func newOpenAI(cfg Config, dims int) (*openAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai embeddings: api key not set")
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(opts...)
	return &openAIProvider{
		client:   &client,
		model:    model,
		dims:     dims,
		sendDims: strings.HasPrefix(model, "text-embedding-3"),
	}, nil
}

func (p *openAIProvider) Name() string    { return "openai" }
func (p *openAIProvider) Dimensions() int { return p.dims }

// Embed retries with exponential backoff on rate limiting and server errors.
// Other errors fail immediately.
func (p *openAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.sendDims {
		params.Dimensions = openai.Int(int64(p.dims))
	}

	var out [][]float32
	operation := func() error {
		resp, err := p.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(inputs) {
			return backoff.Permanent(fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(inputs)))
		}
		out = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(out) {
				return backoff.Permanent(fmt.Errorf("openai returned out-of-range index %d", d.Index))
			}
			out[d.Index] = toFloat32(d.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
