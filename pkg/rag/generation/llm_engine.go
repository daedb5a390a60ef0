package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chat-be/pkg/llm"
)

type result struct {
	text string
	err  error
}

// LLMEngine adapts an llm.LLMProvider. Providers that ignore context
// cancellation still cannot hold the caller past the timeout: the call runs in
// its own goroutine and a late result is discarded.
type LLMEngine struct {
	provider       llm.LLMProvider
	defaultTimeout time.Duration
}

func NewLLMEngine(provider llm.LLMProvider, defaultTimeout time.Duration) *LLMEngine {
	return &LLMEngine{provider: provider, defaultTimeout: defaultTimeout}
}

func (e *LLMEngine) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var llmOpts []llm.Option
	if opts.MaxTokens > 0 {
		llmOpts = append(llmOpts, llm.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		llmOpts = append(llmOpts, llm.WithTemperature(opts.Temperature))
	}

	done := make(chan result, 1)
	go func() {
		text, err := e.provider.Generate(callCtx, prompt, llmOpts...)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, timeout)
			}
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, r.err)
		}
		return r.text, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, callCtx.Err())
	}
}
