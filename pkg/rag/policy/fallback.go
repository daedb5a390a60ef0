// Package policy holds the content rules applied to generated answers.
package policy

import (
	"strings"
)

const (
	NotCoveredAnswer      = "Sorry, this question is not covered in the uploaded documents. Please ask something else."
	TimeoutAnswer         = "The request timed out, please retry."
	GenerationErrorAnswer = "Sorry, I couldn't generate an answer right now. Please try again."
)

func DefaultNoAnswerPhrases() []string {
	return []string{"don't know", "not covered"}
}

// IsNoAnswer reports whether answer is empty or contains one of phrases,
// case insensitive. Curly apostrophes are folded so "don’t know" matches.
func IsNoAnswer(answer string, phrases []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	if normalized == "" {
		return true
	}
	normalized = strings.ReplaceAll(normalized, "’", "'")
	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// Apply substitutes the canned answer when the model had nothing to say.
func Apply(answer string, phrases []string) (string, bool) {
	if IsNoAnswer(answer, phrases) {
		return NotCoveredAnswer, true
	}
	return strings.TrimSpace(answer), false
}
