package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a deterministic bag-of-words embedder. Each content token is
// hashed into one of dims buckets and the resulting count vector is
// L2-normalized, so cosine similarity reflects shared vocabulary. It needs no
// network and is the default provider.
type Hashing struct {
	dims int
}

func NewHashing(dims int) *Hashing { return &Hashing{dims: dims} }

func (h *Hashing) Name() string    { return "hashing" }
func (h *Hashing) Dimensions() int { return h.dims }

func (h *Hashing) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(in)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dims)
	for _, tok := range Tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.dims)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit, drops stop words and strips a plural "s".
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	toks := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if len(f) > 4 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = f[:len(f)-1]
		}
		toks = append(toks, f)
	}
	return toks
}

var stopWords = func() map[string]struct{} {
	words := strings.Fields(`a about am an and any are as at be been being but by can could
		did do does for from get got had has have how i if in into is it its me my no not of
		on or our out over please should so some than that the their them then there these
		they this those to up us via was we were what when where which who why will with
		would you your`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
