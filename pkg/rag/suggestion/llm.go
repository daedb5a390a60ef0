package suggestion

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"rag-chat-be/pkg/llm"
)

type LLMGenerator struct {
	provider llm.LLMProvider
}

func NewLLMGenerator(provider llm.LLMProvider) *LLMGenerator {
	return &LLMGenerator{provider: provider}
}

const suggestPrompt = `A user asked a question and received an answer.

Question: %s
Answer: %s

Write three short follow-up questions the user might ask next, in the language with code "%s".
Put each question on its own line. Do not number them and do not add anything else.`

func (g *LLMGenerator) Suggest(ctx context.Context, question, answer, language string) ([]string, error) {
	out, err := g.provider.Generate(ctx, fmt.Sprintf(suggestPrompt, question, answer, language),
		llm.WithTemperature(0.5),
		llm.WithMaxTokens(150),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest follow-ups: %w", err)
	}
	return ParseLines(out), nil
}

// ParseLines extracts up to three distinct suggestions from model output,
// dropping list markers and blank lines.
func ParseLines(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsDigit(r) || r == '.' || r == ')' || r == '-' || r == '*' || r == '•' || unicode.IsSpace(r)
		})
		line = strings.Trim(line, "\"")
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
