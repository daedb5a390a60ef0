package nats

import (
	"testing"

	"rag-chat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		ev, err := DecodeEvent("events.CHAT_TURN_COMPLETED", []byte(`{"type":"CHAT_TURN_COMPLETED","data":{"turn_id":"t1"},"occurred_at":"2026-01-02T03:04:05Z"}`))
		require.NoError(t, err)
		assert.Equal(t, events.ChatTurnCompleted, ev.EventType())
		assert.Equal(t, "t1", ev.Payload()["turn_id"])
		assert.Equal(t, 2026, ev.Timestamp().Year())
	})

	t.Run("bare payload uses subject", func(t *testing.T) {
		ev, err := DecodeEvent(Subject(events.DocumentIndexUpdated), []byte(`{"source_id":"handbook.pdf"}`))
		require.NoError(t, err)
		assert.Equal(t, events.DocumentIndexUpdated, ev.EventType())
		assert.Equal(t, "handbook.pdf", ev.Payload()["source_id"])
		assert.False(t, ev.Timestamp().IsZero())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeEvent("events.X", []byte(`not json`))
		assert.Error(t, err)
	})
}
