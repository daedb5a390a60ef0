package entity

import (
	"github.com/google/uuid"
)

type DocumentChunk struct {
	Id         uuid.UUID
	SourceId   string
	ChunkIndex int
	Content    string
	Embedding  []float32
}

type ScoredDocumentChunk struct {
	Chunk      *DocumentChunk
	Similarity float64
}
