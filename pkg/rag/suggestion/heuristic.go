package suggestion

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// HeuristicGenerator builds follow-ups from the subject of the question. It is
// deterministic and never calls out.
type HeuristicGenerator struct{}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"what": {}, "whats": {}, "which": {}, "who": {}, "whom": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "would": {}, "should": {}, "will": {},
	"i": {}, "me": {}, "my": {}, "you": {}, "your": {}, "we": {}, "our": {}, "it": {}, "its": {},
	"tell": {}, "explain": {}, "describe": {}, "please": {}, "about": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "to": {}, "from": {}, "with": {}, "and": {}, "or": {}, "there": {}, "this": {}, "that": {},
	"any": {}, "some": {}, "much": {}, "many": {}, "give": {}, "show": {}, "say": {}, "says": {},
}

const maxTopicWords = 4

func (HeuristicGenerator) Suggest(_ context.Context, question, answer, _ string) ([]string, error) {
	topic := topicOf(question)
	if topic == "" {
		topic = topicOf(firstSentence(answer))
	}
	if topic == "" {
		return Default(), nil
	}

	return []string{
		fmt.Sprintf("Can you explain more about %s?", topic),
		fmt.Sprintf("What are the key details of %s?", topic),
		fmt.Sprintf("Where else do the documents mention %s?", topic),
	}, nil
}

func topicOf(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})

	var kept []string
	for _, w := range words {
		w = strings.Trim(strings.ReplaceAll(w, "'", ""), "-")
		if w == "" {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxTopicWords {
			break
		}
	}
	return strings.Join(kept, " ")
}

func firstSentence(text string) string {
	if i := strings.IndexAny(text, ".!?\n"); i >= 0 {
		return text[:i]
	}
	return text
}
