// Package qdrantindex is a vector index backed by a Qdrant collection.
package qdrantindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/vectorindex"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "knowledge_documents"

// pointNamespace derives stable point ids from document ids.
var pointNamespace = uuid.MustParse("6f1c2b9e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

// Config locates the Qdrant server.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// Index stores documents as points with the document fields in the payload.
type Index struct {
	client     *qdrant.Client
	collection string
	dims       int
	embedder   embeddings.Provider
}

var _ vectorindex.Index = (*Index)(nil)

// New connects, waits for the server to answer a health check and makes sure
// the collection exists.
func New(ctx context.Context, cfg Config, embedder embeddings.Provider, dims int) (*Index, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create qdrant client: %w", apperr.ErrStoreUnavailable, err)
	}
	idx := &Index{client: client, collection: cfg.Collection, dims: dims, embedder: embedder}
	if err := retry(ctx, idx.Health); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: qdrant unreachable: %w", apperr.ErrStoreUnavailable, err)
	}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func retry(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(func() error { return op(ctx) }, backoff.WithContext(b, ctx))
}

// Health performs a single health check.
func (x *Index) Health(ctx context.Context) error {
	res, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if res == nil || res.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection creates the collection when missing. Safe to call
// repeatedly and from processes starting at the same time.
func (x *Index) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", apperr.ErrStoreUnavailable, x.collection, err)
	}
	if exists {
		return nil
	}
	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// another instance may have created it between the check and the create
		if exists, cerr := x.client.CollectionExists(ctx, x.collection); cerr == nil && exists {
			return nil
		}
		return fmt.Errorf("%w: create collection %s: %w", apperr.ErrStoreUnavailable, x.collection, err)
	}
	return nil
}

func (x *Index) Close() error { return x.client.Close() }

func (x *Index) Dimensions() int { return x.dims }

func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(docID)).String())
}

// Upsert replaces the point for doc.ID. A replaced document keeps its
// original sequence number so ties still rank it in first-insert order.
func (x *Index) Upsert(ctx context.Context, doc apptype.Document) error {
	done := metrics.TimeOp("qdrant_upsert_document")
	success := false
	defer func() { done(success) }()

	doc, err := vectorindex.PrepareDocument(ctx, doc, x.embedder, x.dims)
	if err != nil {
		return err
	}
	seq := time.Now().UnixNano()
	existing, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: x.collection,
		Ids:            []*qdrant.PointId{pointID(doc.ID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant get: %w", apperr.ErrStoreUnavailable, err)
	}
	if len(existing) > 0 {
		if v, ok := existing[0].Payload["seq"]; ok {
			seq = v.GetIntegerValue()
		}
	}

	point := &qdrant.PointStruct{
		Id:      pointID(doc.ID),
		Vectors: qdrant.NewVectors(doc.Embedding...),
		Payload: qdrant.NewValueMap(toPayload(doc, seq)),
	}
	err = retry(ctx, func(ctx context.Context) error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: x.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         []*qdrant.PointStruct{point},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %w", apperr.ErrStoreUnavailable, err)
	}
	success = true
	return nil
}

// Search over-fetches a little so equal scores at the cut can be ordered by
// insertion before truncating to k.
func (x *Index) Search(ctx context.Context, query string, k int, threshold float64) ([]apptype.ScoredDocument, error) {
	done := metrics.TimeOp("qdrant_search")
	success := false
	defer func() { done(success) }()

	if k <= 0 {
		success = true
		return []apptype.ScoredDocument{}, nil
	}
	q, err := embeddings.EmbedOne(ctx, x.embedder, query, x.dims)
	if err != nil {
		return nil, err
	}
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(q...),
		Limit:          qdrant.PtrOf(uint64(k + 10)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %w", apperr.ErrStoreUnavailable, err)
	}

	type ranked struct {
		hit apptype.ScoredDocument
		seq int64
	}
	hits := make([]ranked, 0, len(results))
	for _, r := range results {
		sim := float64(r.Score)
		if sim <= threshold {
			continue
		}
		doc, seq := fromPayload(r.Payload)
		hits = append(hits, ranked{hit: apptype.ScoredDocument{Document: doc, Similarity: sim}, seq: seq})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Similarity != hits[j].hit.Similarity {
			return hits[i].hit.Similarity > hits[j].hit.Similarity
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]apptype.ScoredDocument, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, h.hit)
	}
	success = true
	return out, nil
}

func (x *Index) Get(ctx context.Context, id string) (apptype.Document, error) {
	res, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: x.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return apptype.Document{}, fmt.Errorf("%w: qdrant get: %w", apperr.ErrStoreUnavailable, err)
	}
	if len(res) == 0 {
		return apptype.Document{}, fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
	}
	doc, _ := fromPayload(res[0].Payload)
	if v := res[0].GetVectors().GetVector(); v != nil {
		if dense := v.GetDense(); dense != nil {
			doc.Embedding = dense.GetData()
		} else {
			doc.Embedding = v.GetData()
		}
	}
	return doc, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count: %w", apperr.ErrStoreUnavailable, err)
	}
	return int(n), nil
}
