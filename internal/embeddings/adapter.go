package embeddings

import (
	"context"
	"strings"
)

// adaptingProvider wraps a Provider and coerces its embeddings to a target
// dimensionality by zero-padding or truncating.
type adaptingProvider struct {
	base       Provider
	targetDims int
	truncate   bool
	pad        bool
}

// WrapToDims returns a Provider whose vectors have exactly targetDims entries.
// mode is "pad_or_truncate" (default), "pad" or "truncate"; the mode that is
// not selected leaves mismatched vectors untouched so EmbedOne rejects them.
// If base already matches targetDims, base is returned unchanged.
func WrapToDims(base Provider, targetDims int, mode string) Provider {
	if base == nil || targetDims <= 0 || base.Dimensions() == targetDims {
		return base
	}
	ap := &adaptingProvider{base: base, targetDims: targetDims, truncate: true, pad: true}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "pad":
		ap.truncate = false
	case "truncate":
		ap.pad = false
	}
	return ap
}

func (p *adaptingProvider) Name() string { return p.base.Name() }

func (p *adaptingProvider) Dimensions() int { return p.targetDims }

func (p *adaptingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := p.base.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		switch {
		case len(v) > p.targetDims && p.truncate:
			vecs[i] = v[:p.targetDims]
		case len(v) < p.targetDims && p.pad:
			out := make([]float32, p.targetDims)
			copy(out, v)
			vecs[i] = out
		}
	}
	return vecs, nil
}
