package mapper

import (
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"
)

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(c *model.DocumentChunk) *entity.DocumentChunk {
	if c == nil {
		return nil
	}
	return &entity.DocumentChunk{
		Id:         c.Id,
		SourceId:   c.SourceId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  c.Embedding.Slice(),
	}
}
