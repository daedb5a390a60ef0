package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "30s", 30 * time.Second},
		{"bare seconds", "12", 12 * time.Second},
		{"garbage falls back", "soon", time.Minute},
		{"empty falls back", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " don't know , not covered ,, ")
	assert.Equal(t, []string{"don't know", "not covered"}, getEnvAsList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_LIST", []string{"x"}))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENERATION_TIMEOUT", "")
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("ALLOW_ANONYMOUS", "")
	t.Setenv("TRANSLATE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, 45*time.Second, cfg.Pipeline.GenerationTimeout)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.TranslateTimeout)
	assert.Equal(t, 5, cfg.Pipeline.HistoryLimit)
	assert.Equal(t, 1000, cfg.Pipeline.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Pipeline.Temperature, 0.0001)
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, []string{"don't know", "not covered"}, cfg.Pipeline.NoAnswerPhrases)
}
