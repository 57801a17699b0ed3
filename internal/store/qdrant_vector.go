package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"tribridrag/internal/legs/vector"
)

// QdrantVectorStore implements internal/legs/vector.Store against a Qdrant
// collection, filtering on a corpus_id payload field per query — adapted
// from internal/persistence/databases/qdrant_vector.go's client setup and
// Query() call shape (that version searches one global collection with no
// tenant filter; this one always scopes by corpus_id).
type QdrantVectorStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantVectorStore(ctx context.Context, dsn, collection string, dimensions int) (*QdrantVectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantVectorStore{client: client, collection: collection}
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check qdrant collection: %w", err)
	}
	if !exists {
		if dimensions <= 0 {
			client.Close()
			return nil, fmt.Errorf("qdrant collection %q does not exist and dimensions was not provided", collection)
		}
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("create qdrant collection: %w", err)
		}
	}
	return store, nil
}

func (s *QdrantVectorStore) SimilaritySearch(ctx context.Context, corpusID string, vec []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		k = 40
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	limit := uint64(k)

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(v),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("corpus_id", corpusID)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	out := make([]vector.Match, 0, len(hits))
	for _, hit := range hits {
		chunkID := hit.Id.GetUuid()
		if hit.Payload != nil {
			if v, ok := hit.Payload["chunk_id"]; ok {
				chunkID = v.GetStringValue()
			}
		}
		out = append(out, vector.Match{ChunkID: chunkID, Score: float64(hit.Score)})
	}
	return out, nil
}

func (s *QdrantVectorStore) Close() error { return s.client.Close() }
