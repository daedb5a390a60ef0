package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	phrases := DefaultNoAnswerPhrases()

	tests := []struct {
		name     string
		answer   string
		want     string
		replaced bool
	}{
		{"empty", "   ", NotCoveredAnswer, true},
		{"dont know", "I don't know the answer to that.", NotCoveredAnswer, true},
		{"curly apostrophe", "I don’t know.", NotCoveredAnswer, true},
		{"not covered upper", "This is NOT COVERED in the documents.", NotCoveredAnswer, true},
		{"real answer", "  Employees get 20 days of leave.\n", "Employees get 20 days of leave.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, replaced := Apply(tt.answer, phrases)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.replaced, replaced)
		})
	}
}

func TestIsNoAnswerIgnoresBlankPhrases(t *testing.T) {
	assert.False(t, IsNoAnswer("Leave is 20 days.", []string{"", "  "}))
}
