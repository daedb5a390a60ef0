// Package rag composes the retrieval, generation and suggestion capabilities
// behind the single interface the chat pipeline consumes.
package rag

import (
	"context"

	"rag-chat-be/pkg/rag/generation"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/suggestion"
)

type Assistant interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Passage, error)
	Generate(ctx context.Context, prompt string, opts generation.Options) (string, error)
	Suggest(ctx context.Context, question, answer, language string) ([]string, error)
}

type assistant struct {
	retriever retrieval.Engine
	generator generation.Engine
	suggester suggestion.Generator
}

func NewAssistant(retriever retrieval.Engine, generator generation.Engine, suggester suggestion.Generator) Assistant {
	return &assistant{
		retriever: retriever,
		generator: generator,
		suggester: suggester,
	}
}

func (a *assistant) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Passage, error) {
	return a.retriever.Search(ctx, query, k)
}

func (a *assistant) Generate(ctx context.Context, prompt string, opts generation.Options) (string, error) {
	return a.generator.Generate(ctx, prompt, opts)
}

func (a *assistant) Suggest(ctx context.Context, question, answer, language string) ([]string, error) {
	return a.suggester.Suggest(ctx, question, answer, language)
}
