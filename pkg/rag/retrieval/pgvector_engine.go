package retrieval

import (
	"context"
	"fmt"
	"strings"

	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/pkg/embedding"
)

// PgVectorEngine searches the document_chunks table with pgvector cosine distance.
type PgVectorEngine struct {
	embedder embedding.EmbeddingProvider
	chunks   contract.DocumentChunkRepository
	minScore float64
}

func NewPgVectorEngine(embedder embedding.EmbeddingProvider, chunks contract.DocumentChunkRepository, minScore float64) *PgVectorEngine {
	return &PgVectorEngine{embedder: embedder, chunks: chunks, minScore: minScore}
}

func (e *PgVectorEngine) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []Passage{}, nil
	}

	vector, err := e.embedder.Embed(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndexUnavailable, err)
	}

	scored, err := e.chunks.SearchSimilarWithScore(ctx, vector, k, e.minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	passages := make([]Passage, 0, len(scored))
	for _, s := range scored {
		if s == nil || s.Chunk == nil {
			continue
		}
		passages = append(passages, Passage{
			Text:     s.Chunk.Content,
			SourceID: s.Chunk.SourceId,
			Score:    s.Similarity,
		})
	}
	return rank(passages, k), nil
}
