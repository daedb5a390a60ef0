package handler

import (
	"context"
	"encoding/json"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/google/uuid"
)

const defaultHistoryPage = 20

// SessionRegistry is the part of the hub the router drives.
type SessionRegistry interface {
	Session(sessionID string) (internalWS.SessionInfo, bool)
	Join(ctx context.Context, sessionID string, conversationID uuid.UUID) (*entity.Conversation, error)
	Leave(sessionID string) (uuid.UUID, error)
	SetTyping(sessionID string, isTyping bool) error
	Send(sessionID string, event dto.SocketEvent) error
	Broadcast(conversationID uuid.UUID, event dto.SocketEvent) error
}

// ConversationReader is the part of the conversation service socket events read.
type ConversationReader interface {
	Authorize(ctx context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error)
	LatestMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, bool, error)
	ListMessages(ctx context.Context, conversationId uuid.UUID, limit, offset int) ([]*entity.Message, error)
	MarkMessageRead(ctx context.Context, messageId, userId uuid.UUID, isAdmin bool) (*entity.Message, error)
}

type eventHandler func(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error

// ChatEventRouter turns inbound socket events into registry, pipeline and
// store calls.
type ChatEventRouter struct {
	registry      SessionRegistry
	pipeline      service.IChatPipeline
	conversations ConversationReader
	mapper        *mapper.ConversationMapper
	historyPage   int
	logger        logger.ILogger
	handlers      map[string]eventHandler
}

func NewChatEventRouter(registry SessionRegistry, pipeline service.IChatPipeline, conversations ConversationReader, historyPage int, log logger.ILogger) *ChatEventRouter {
	if historyPage <= 0 {
		historyPage = defaultHistoryPage
	}
	r := &ChatEventRouter{
		registry:      registry,
		pipeline:      pipeline,
		conversations: conversations,
		mapper:        mapper.NewConversationMapper(),
		historyPage:   historyPage,
		logger:        log,
	}
	r.handlers = map[string]eventHandler{
		constant.EventJoinConversation:           r.join,
		constant.EventLeaveConversation:          r.leave,
		constant.EventAsk:                        r.ask,
		constant.EventTyping:                     r.typing,
		constant.EventMessageStatus:              r.messageStatus,
		constant.EventRequestConversationHistory: r.history,
	}
	return r
}

// Dispatch implements websocket.Dispatcher. Failures are reported to the
// sending session as error events carrying the request id.
func (r *ChatEventRouter) Dispatch(ctx context.Context, sessionID string, event *dto.InboundEvent) {
	session, ok := r.registry.Session(sessionID)
	if !ok {
		return
	}

	handle, ok := r.handlers[event.Type]
	if !ok {
		r.sendError(sessionID, event.RequestId, apperror.Validation("unknown event type "+event.Type))
		return
	}

	if err := handle(ctx, session, event); err != nil {
		r.logger.Debug(constant.ModuleSocket, "Event rejected", map[string]interface{}{
			"session_id": sessionID,
			"event":      event.Type,
			"error":      err.Error(),
		})
		r.sendError(sessionID, event.RequestId, err)
	}
}

func decode(event *dto.InboundEvent, dst interface{}) error {
	if len(event.Data) > 0 && string(event.Data) != "null" {
		if err := json.Unmarshal(event.Data, dst); err != nil {
			return apperror.Validation("malformed " + event.Type + " payload")
		}
	}
	return serverutils.ValidateRequest(dst)
}

func (r *ChatEventRouter) reply(session internalWS.SessionInfo, event *dto.InboundEvent, eventType string, data interface{}) error {
	err := r.registry.Send(session.ID, dto.SocketEvent{Type: eventType, Data: data, RequestId: event.RequestId})
	if err != nil {
		r.logger.Debug(constant.ModuleSocket, "Reply not delivered", map[string]interface{}{
			"session_id": session.ID,
			"event":      eventType,
		})
	}
	return nil
}

func (r *ChatEventRouter) sendError(sessionID, requestID string, err error) {
	_ = r.registry.Send(sessionID, dto.SocketEvent{
		Type:      constant.EventError,
		Data:      dto.ErrorEvent{Code: apperror.Code(err), Message: apperror.Message(err)},
		RequestId: requestID,
	})
}

func (r *ChatEventRouter) join(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	var req dto.JoinConversationRequest
	if err := decode(event, &req); err != nil {
		return err
	}

	conv, err := r.registry.Join(ctx, session.ID, req.ConversationId)
	if err != nil {
		return err
	}

	messages, hasMore, err := r.conversations.LatestMessages(ctx, conv.Id, r.historyPage)
	if err != nil {
		return err
	}

	return r.reply(session, event, constant.EventConversationJoined, dto.ConversationJoinedEvent{
		ConversationId: conv.Id,
		Title:          conv.Title,
		Messages:       r.mapper.MessagesToResponses(messages),
		HasMore:        hasMore,
	})
}

func (r *ChatEventRouter) leave(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	left, err := r.registry.Leave(session.ID)
	if err != nil {
		return err
	}
	return r.reply(session, event, constant.EventConversationLeft, dto.ConversationLeftEvent{ConversationId: left})
}

func (r *ChatEventRouter) ask(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	var req dto.AskRequest
	if err := decode(event, &req); err != nil {
		return err
	}

	// the pipeline acks the origin itself, ahead of the turn's first event
	_, err := r.pipeline.HandleQuestion(ctx, service.Origin{
		SessionID: session.ID,
		UserID:    session.UserID,
		IsAdmin:   session.IsAdmin,
		RequestID: event.RequestId,
	}, &req)
	return err
}

func (r *ChatEventRouter) typing(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	var req dto.TypingRequest
	if err := decode(event, &req); err != nil {
		return err
	}
	if session.ConversationID != req.ConversationId {
		return apperror.Validation("join the conversation before typing in it")
	}
	return r.registry.SetTyping(session.ID, req.IsTyping)
}

func (r *ChatEventRouter) messageStatus(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	var req dto.MessageStatusRequest
	if err := decode(event, &req); err != nil {
		return err
	}
	if session.UserID == uuid.Nil {
		return apperror.New(apperror.ErrAuthRequired, "sign in to update messages")
	}

	msg, err := r.conversations.MarkMessageRead(ctx, req.MessageId, session.UserID, session.IsAdmin)
	if err != nil {
		return err
	}

	update := dto.SocketEvent{
		Type: constant.EventMessageStatusUpdated,
		Data: dto.MessageStatusUpdatedEvent{
			MessageId:      msg.Id,
			ConversationId: msg.ConversationId,
			Status:         string(msg.Status()),
			ReadAt:         *msg.ReadAt,
		},
		RequestId: event.RequestId,
	}
	if session.ConversationID == msg.ConversationId {
		return r.registry.Broadcast(msg.ConversationId, update)
	}
	return r.reply(session, event, update.Type, update.Data)
}

func (r *ChatEventRouter) history(ctx context.Context, session internalWS.SessionInfo, event *dto.InboundEvent) error {
	var req dto.ConversationHistoryRequest
	if err := decode(event, &req); err != nil {
		return err
	}
	if session.UserID == uuid.Nil {
		return apperror.New(apperror.ErrAuthRequired, "sign in to read conversations")
	}
	if req.Limit == 0 {
		req.Limit = r.historyPage
	}

	if _, err := r.conversations.Authorize(ctx, req.ConversationId, session.UserID, session.IsAdmin); err != nil {
		return err
	}

	messages, err := r.conversations.ListMessages(ctx, req.ConversationId, req.Limit+1, req.Offset)
	if err != nil {
		return err
	}
	hasMore := len(messages) > req.Limit
	if hasMore {
		messages = messages[:req.Limit]
	}

	return r.reply(session, event, constant.EventConversationHistory, dto.ConversationMessagesResponse{
		ConversationId: req.ConversationId,
		Messages:       r.mapper.MessagesToResponses(messages),
		HasMore:        hasMore,
		Offset:         req.Offset,
	})
}
