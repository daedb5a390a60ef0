// Package openai talks to any OpenAI compatible chat completion endpoint
// (OpenAI itself, LM Studio, vLLM, llama.cpp server).
package openai

import (
	"context"
	"fmt"

	"rag-chat-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(apiKey, baseURL, model string) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func toChatMessages(history []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		switch role {
		case "model":
			role = goopenai.ChatMessageRoleAssistant
		case "":
			role = goopenai.ChatMessageRoleUser
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    toChatMessages(history),
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}
