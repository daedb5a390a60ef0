package handler

import (
	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type SocketOptions struct {
	JWTSecret      string
	AllowAnonymous bool
	MaxMessageSize int64
}

type ChatSocketHandler struct {
	hub    *internalWS.Hub
	router *ChatEventRouter
	opts   SocketOptions
	logger logger.ILogger
}

func NewChatSocketHandler(hub *internalWS.Hub, router *ChatEventRouter, opts SocketOptions, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		hub:    hub,
		router: router,
		opts:   opts,
		logger: log,
	}
}

func (h *ChatSocketHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.ServeWs)
}

// resolveIdentity reads the token from the "token" query parameter (browsers)
// or the Authorization header (tooling). No token means anonymous.
func (h *ChatSocketHandler) resolveIdentity(c *fiber.Ctx) (internalWS.Identity, error) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c.Get("Authorization"))
	}

	if tokenStr == "" {
		if !h.opts.AllowAnonymous {
			return internalWS.Identity{}, apperror.New(apperror.ErrAuthRequired, "Missing token (Query 'token' or Header 'Authorization')")
		}
		return internalWS.Identity{}, nil
	}

	identity, err := serverutils.ParseToken(h.opts.JWTSecret, tokenStr)
	if err != nil {
		return internalWS.Identity{}, err
	}
	return internalWS.Identity{UserID: identity.UserID, IsAdmin: identity.IsAdmin}, nil
}

// ServeWs authenticates the handshake, upgrades the connection and runs the
// session until the client goes away.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	identity, err := h.resolveIdentity(c)
	if err != nil {
		h.logger.Warn(constant.ModuleSocket, "Rejected WebSocket handshake", map[string]interface{}{
			"ip":    c.IP(),
			"error": err.Error(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, apperror.Message(err)))
	}

	return websocket.New(func(conn *websocket.Conn) {
		session, err := h.hub.Register(identity)
		if err != nil {
			_ = conn.WriteJSON(dto.SocketEvent{
				Type: constant.EventError,
				Data: dto.ErrorEvent{Code: apperror.Code(err), Message: apperror.Message(err)},
			})
			_ = conn.Close()
			return
		}

		_ = h.hub.Send(session.ID, dto.SocketEvent{
			Type: constant.EventConnected,
			Data: dto.ConnectedEvent{SessionId: session.ID, UserId: session.UserRef()},
		})

		h.logger.Info(constant.ModuleSocket, "Starting WebSocket session", map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
		})
		internalWS.Serve(h.hub, conn, session, h.router, h.opts.MaxMessageSize, h.logger)
		h.logger.Info(constant.ModuleSocket, "WebSocket session ended", map[string]interface{}{
			"session_id": session.ID,
		})
	})(c)
}
