package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/pkg/llm"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.6, 0.8}, nil
}

type fakeChunkRepo struct {
	results []*entity.ScoredDocumentChunk
	err     error
	limit   int
}

func (f *fakeChunkRepo) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.ScoredDocumentChunk, error) {
	f.limit = limit
	return f.results, f.err
}

func (f *fakeChunkRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.results)), nil
}

func scored(source, text string, score float64) *entity.ScoredDocumentChunk {
	return &entity.ScoredDocumentChunk{Chunk: &entity.DocumentChunk{SourceId: source, Content: text}, Similarity: score}
}

func TestPgVectorEngineSearch(t *testing.T) {
	tests := []struct {
		name    string
		repo    *fakeChunkRepo
		embed   error
		k       int
		want    []string
		wantErr error
	}{
		{
			name: "orders by score and bounds k",
			repo: &fakeChunkRepo{results: []*entity.ScoredDocumentChunk{
				scored("a.pdf", "low", 0.4), scored("b.pdf", "high", 0.9), scored("c.pdf", "mid", 0.7),
			}},
			k:    2,
			want: []string{"high", "mid"},
		},
		{
			name: "empty index is not an error",
			repo: &fakeChunkRepo{},
			k:    4,
			want: []string{},
		},
		{
			name:    "database failure is index unavailable",
			repo:    &fakeChunkRepo{err: errors.New("connection refused")},
			k:       4,
			wantErr: ErrIndexUnavailable,
		},
		{
			name:    "embedding failure is index unavailable",
			repo:    &fakeChunkRepo{},
			embed:   errors.New("ollama down"),
			k:       4,
			wantErr: ErrIndexUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewPgVectorEngine(fakeEmbedder{err: tt.embed}, tt.repo, 0.3)
			got, err := engine.Search(context.Background(), "leave policy", tt.k)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			texts := make([]string, 0, len(got))
			for _, p := range got {
				texts = append(texts, p.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestPgVectorEngineBlankQuery(t *testing.T) {
	repo := &fakeChunkRepo{results: []*entity.ScoredDocumentChunk{scored("a", "x", 1)}}
	got, err := NewPgVectorEngine(fakeEmbedder{}, repo, 0).Search(context.Background(), "   ", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type fakeQdrant struct {
	points []*qdrant.ScoredPoint
	err    error
	req    *qdrant.QueryPoints
}

func (f *fakeQdrant) Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.req = request
	return f.points, f.err
}

func TestQdrantEngineSearch(t *testing.T) {
	client := &fakeQdrant{points: []*qdrant.ScoredPoint{
		{Score: 0.5, Payload: qdrant.NewValueMap(map[string]any{"text": "Overtime is paid", "source_id": "policy.pdf"})},
		{Score: 0.9, Payload: qdrant.NewValueMap(map[string]any{"text": "Leave is 20 days", "source_id": "handbook.pdf"})},
		{Score: 0.8, Payload: qdrant.NewValueMap(map[string]any{"source_id": "no-text.pdf"})},
	}}

	got, err := NewQdrantEngine(client, fakeEmbedder{}, "documents", 0.2).Search(context.Background(), "leave", 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "handbook.pdf", got[0].SourceID)
	assert.Equal(t, "documents", client.req.CollectionName)
	assert.Equal(t, uint64(4), client.req.GetLimit())
}

func TestQdrantEngineMissingCollectionIsEmpty(t *testing.T) {
	client := &fakeQdrant{err: status.Error(codes.NotFound, "collection documents not found")}
	got, err := NewQdrantEngine(client, fakeEmbedder{}, "documents", 0).Search(context.Background(), "leave", 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	client.err = status.Error(codes.Unavailable, "connection refused")
	_, err = NewQdrantEngine(client, fakeEmbedder{}, "documents", 0).Search(context.Background(), "leave", 4)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

type countingEngine struct {
	calls atomic.Int32
	err   error
	empty atomic.Bool
}

func (c *countingEngine) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if c.empty.Load() {
		return []Passage{}, nil
	}
	return []Passage{{Text: "cached", Score: 1}}, nil
}

func TestCachedEngine(t *testing.T) {
	inner := &countingEngine{}
	engine := NewCachedEngine(inner, time.Minute)
	ctx := context.Background()

	first, err := engine.Search(ctx, "Leave Policy", 4)
	require.NoError(t, err)
	first[0].Text = "mutated by caller"

	second, err := engine.Search(ctx, "  leave policy ", 4)
	require.NoError(t, err)
	assert.Equal(t, "cached", second[0].Text)
	assert.Equal(t, int32(1), inner.calls.Load())

	engine.Flush()
	_, err = engine.Search(ctx, "leave policy", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEngineDoesNotCacheErrors(t *testing.T) {
	inner := &countingEngine{err: ErrIndexUnavailable}
	engine := NewCachedEngine(inner, time.Minute)

	_, err := engine.Search(context.Background(), "q", 4)
	assert.Error(t, err)
	_, err = engine.Search(context.Background(), "q", 4)
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEngineDoesNotCacheEmptyResults(t *testing.T) {
	inner := &countingEngine{}
	inner.empty.Store(true)
	engine := NewCachedEngine(inner, time.Minute)
	ctx := context.Background()

	got, err := engine.Search(ctx, "new handbook", 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	// documents get indexed; no flush happens
	inner.empty.Store(false)
	got, err = engine.Search(ctx, "new handbook", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(2), inner.calls.Load())

	_, err = engine.Search(ctx, "new handbook", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

type fakeLLM struct {
	out   string
	err   error
	calls atomic.Int32
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, options...)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.calls.Add(1)
	return f.out, f.err
}

func TestLLMTranslator(t *testing.T) {
	ctx := context.Background()

	t.Run("same language is passthrough", func(t *testing.T) {
		provider := &fakeLLM{out: "ignored"}
		out := NewLLMTranslator(provider, time.Minute).Translate(ctx, "cuti tahunan", "en", "EN")
		assert.Equal(t, "cuti tahunan", out)
		assert.Zero(t, provider.calls.Load())
	})

	t.Run("translation is memoized", func(t *testing.T) {
		provider := &fakeLLM{out: "\"annual leave\"\n"}
		tr := NewLLMTranslator(provider, time.Minute)
		assert.Equal(t, "annual leave", tr.Translate(ctx, "cuti tahunan", "id", "en"))
		assert.Equal(t, "annual leave", tr.Translate(ctx, "cuti tahunan", "id", "en"))
		assert.Equal(t, int32(1), provider.calls.Load())
	})

	t.Run("failure returns original", func(t *testing.T) {
		provider := &fakeLLM{err: errors.New("timeout")}
		out := NewLLMTranslator(provider, time.Minute).Translate(ctx, "cuti tahunan", "id", "en")
		assert.Equal(t, "cuti tahunan", out)
	})
}
