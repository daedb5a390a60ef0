package implementation

import (
	"context"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentChunkMapper
}

func NewDocumentChunkRepository(db *gorm.DB) contract.DocumentChunkRepository {
	return &DocumentChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentChunkMapper(),
	}
}

// SearchSimilarWithScore ranks chunks by cosine similarity, highest first.
// pgvector's <=> is cosine distance, so similarity is 1 - distance.
func (r *DocumentChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = 4
	}

	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredDocumentChunk, len(results))
	for i := range results {
		scored[i] = &entity.ScoredDocumentChunk{
			Chunk:      r.mapper.ToEntity(&results[i].DocumentChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *DocumentChunkRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).Count(&count).Error
	return count, err
}
