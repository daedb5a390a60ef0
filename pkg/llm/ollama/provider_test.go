package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rag-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatEndpoint, r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 1000, req.Options.NumPredict)
		assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "Twenty days."}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "How many leave days?"},
		{Role: "model", Content: "Let me check."},
	}, llm.WithMaxTokens(1000), llm.WithTemperature(0.2))

	require.NoError(t, err)
	assert.Equal(t, "Twenty days.", out)
}

func TestChatHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOllamaProvider(srv.URL, "llama3").Generate(ctx, "hello")
	assert.Error(t, err)
}
