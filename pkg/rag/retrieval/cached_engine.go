package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedEngine memoizes non-empty searches. Flush it when the index changes.
// Empty results are not kept so a freshly indexed collection shows up on the
// next search even without an index-update event.
type CachedEngine struct {
	next  Engine
	cache *cache.Cache
}

func NewCachedEngine(next Engine, ttl time.Duration) *CachedEngine {
	return &CachedEngine{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(query string, k int) string {
	return fmt.Sprintf("%d|%s", k, strings.ToLower(strings.TrimSpace(query)))
}

func (e *CachedEngine) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	key := cacheKey(query, k)
	if cached, found := e.cache.Get(key); found {
		return append([]Passage(nil), cached.([]Passage)...), nil
	}

	passages, err := e.next.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(passages) > 0 {
		e.cache.SetDefault(key, append([]Passage(nil), passages...))
	}
	return passages, nil
}

func (e *CachedEngine) Flush() {
	e.cache.Flush()
}
