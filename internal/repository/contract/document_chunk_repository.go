package contract

import (
	"context"

	"rag-chat-be/internal/entity"
)

type DocumentChunkRepository interface {
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.ScoredDocumentChunk, error)
	Count(ctx context.Context) (int64, error)
}
