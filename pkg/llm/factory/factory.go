package factory

import (
	"fmt"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/llm/huggingface"
	"rag-chat-be/pkg/llm/ollama"
	"rag-chat-be/pkg/llm/openai"
)

type Config struct {
	Provider string // "ollama", "huggingface", "openai"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "huggingface":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "openai":
		return openai.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
