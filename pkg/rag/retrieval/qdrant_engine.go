package retrieval

import (
	"context"
	"fmt"
	"strings"

	"rag-chat-be/pkg/embedding"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pointQuerier is the slice of *qdrant.Client the engine uses.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	MinScore   float64
}

// QdrantEngine searches a qdrant collection whose points carry "text" and
// "source_id" payload fields.
type QdrantEngine struct {
	client     pointQuerier
	embedder   embedding.EmbeddingProvider
	collection string
	minScore   float32
}

func NewQdrantClient(cfg QdrantConfig) (*qdrant.Client, error) {
	return qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
}

func NewQdrantEngine(client pointQuerier, embedder embedding.EmbeddingProvider, collection string, minScore float64) *QdrantEngine {
	return &QdrantEngine{
		client:     client,
		embedder:   embedder,
		collection: collection,
		minScore:   float32(minScore),
	}
}

func (e *QdrantEngine) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []Passage{}, nil
	}

	vector, err := e.embedder.Embed(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndexUnavailable, err)
	}

	limit := uint64(k)
	points, err := e.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: e.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &e.minScore,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		// A collection that was never created is an empty index.
		if status.Code(err) == codes.NotFound {
			return []Passage{}, nil
		}
		return nil, fmt.Errorf("%w: query qdrant: %v", ErrIndexUnavailable, err)
	}

	passages := make([]Passage, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		text := payload["text"].GetStringValue()
		if text == "" {
			continue
		}
		passages = append(passages, Passage{
			Text:     text,
			SourceID: payload["source_id"].GetStringValue(),
			Score:    float64(point.GetScore()),
		})
	}
	return rank(passages, k), nil
}
