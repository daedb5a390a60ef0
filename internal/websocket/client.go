package websocket

import (
	"context"
	"encoding/json"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	pingPeriod            = (pongWait * 9) / 10
	defaultMaxMessageSize = 64 * 1024
)

// Dispatcher handles one decoded inbound event for a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, event *dto.InboundEvent)
}

// Client pumps frames between one websocket connection and its session.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	session        *Session
	dispatcher     Dispatcher
	maxMessageSize int64
	logger         logger.ILogger
}

// readPump decodes inbound frames and hands them to the dispatcher, one at a
// time, until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c.session.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(constant.ModuleSocket, "Unexpected close", map[string]interface{}{
					"session_id": c.session.ID,
					"error":      err.Error(),
				})
			}
			return
		}

		c.hub.Touch(c.session.ID)

		var event dto.InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil || event.Type == "" {
			_ = c.hub.Send(c.session.ID, dto.SocketEvent{
				Type: constant.EventError,
				Data: dto.ErrorEvent{Code: "validation_error", Message: "malformed event"},
			})
			continue
		}

		c.dispatcher.Dispatch(ctx, c.session.ID, &event)
	}
}

// writePump writes queued frames, one websocket message per frame, and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.session.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
