package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Offline BPE ranks so token counting never reaches the network.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const defaultEncoding = "cl100k_base"

type Counter interface {
	CountTokens(text string) int
}

type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

var (
	tiktokenInstance *TiktokenCounter
	tiktokenOnce     sync.Once
	tiktokenErr      error
)

// GetTiktokenCounter returns the shared cl100k_base counter.
func GetTiktokenCounter() (*TiktokenCounter, error) {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			tiktokenErr = err
			return
		}
		tiktokenInstance = &TiktokenCounter{encoding: enc}
	})
	if tiktokenErr != nil {
		return nil, tiktokenErr
	}
	return tiktokenInstance, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateCounter approximates four characters per token. It is used when the
// BPE ranks cannot be loaded.
type EstimateCounter struct{}

func (EstimateCounter) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// NewCounter prefers tiktoken and degrades to the estimate.
func NewCounter() Counter {
	if c, err := GetTiktokenCounter(); err == nil {
		return c
	}
	return EstimateCounter{}
}
