// Package generation runs prompts against an LLM backend under a hard timeout.
package generation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationFailed  = errors.New("generation failed")
)

type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type Engine interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}
