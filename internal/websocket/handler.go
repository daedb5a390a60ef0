package websocket

import (
	"context"

	"rag-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

// Serve runs the pumps for an already registered session. It returns when the
// connection closes, after the session has been unregistered.
func Serve(hub *Hub, conn *websocket.Conn, session *Session, dispatcher Dispatcher, maxMessageSize int64, log logger.ILogger) {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	client := &Client{
		hub:            hub,
		conn:           conn,
		session:        session,
		dispatcher:     dispatcher,
		maxMessageSize: maxMessageSize,
		logger:         log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump()
	client.readPump(ctx)
}
