// Package retrieval reads the document index built by the ingestion service.
package retrieval

import (
	"context"
	"errors"
	"sort"
)

// ErrIndexUnavailable means the index could not be queried at all. An empty
// index is not an error.
var ErrIndexUnavailable = errors.New("document index unavailable")

// Passage is one ranked chunk of context.
type Passage struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Engine returns at most k passages ordered by descending score.
type Engine interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

func rank(passages []Passage, k int) []Passage {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if k > 0 && len(passages) > k {
		passages = passages[:k]
	}
	return passages
}
