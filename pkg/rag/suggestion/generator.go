// Package suggestion derives follow-up questions from the latest exchange.
package suggestion

import (
	"context"
)

const MaxSuggestions = 3

type Generator interface {
	Suggest(ctx context.Context, question, answer, language string) ([]string, error)
}

// Default is offered after an answer when no better suggestions are available.
func Default() []string {
	return []string{
		"Can you elaborate on that?",
		"Tell me more about this topic",
		"Can you provide more details?",
	}
}

// AfterFailure is offered when the turn could not produce an answer.
func AfterFailure() []string {
	return []string{"Try again", "Ask something else"}
}

func New(kind string, llmGen *LLMGenerator) Generator {
	if kind == "llm" && llmGen != nil {
		return llmGen
	}
	return HeuristicGenerator{}
}
