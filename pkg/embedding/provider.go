package embedding

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Task hints are forwarded to providers that distinguish query and document embeddings.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider turns text into a unit-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type Config struct {
	Provider string // "ollama", "gemini", "jina"
	BaseURL  string
	Model    string
	APIKey   string
}

func NewProvider(cfg Config) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return NewGeminiProvider(cfg.APIKey), nil
	case "jina":
		return NewJinaProvider(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// normalizeVector scales vec to magnitude 1. pgvector cosine distance and qdrant
// cosine scoring both assume unit vectors.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
