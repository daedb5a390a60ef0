package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SocketEvent is the frame written to clients.
type SocketEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	RequestId string      `json:"request_id,omitempty"`
}

// InboundEvent is the frame read from clients; Data is decoded per type.
type InboundEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RequestId string          `json:"request_id,omitempty"`
}

// Inbound payloads

type JoinConversationRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
}

type AskRequest struct {
	Question       string     `json:"question"`
	Language       string     `json:"language" validate:"omitempty,max=10"`
	ConversationId *uuid.UUID `json:"conversation_id,omitempty"`
}

type TypingRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	IsTyping       bool      `json:"is_typing"`
}

type MessageStatusRequest struct {
	MessageId uuid.UUID `json:"message_id" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=read"`
}

type ConversationHistoryRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Limit          int       `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset         int       `json:"offset" validate:"omitempty,min=0"`
}

// Outbound payloads

type ConnectedEvent struct {
	SessionId string     `json:"session_id"`
	UserId    *uuid.UUID `json:"user_id,omitempty"`
}

type ConversationJoinedEvent struct {
	ConversationId uuid.UUID         `json:"conversation_id"`
	Title          string            `json:"title"`
	Messages       []MessageResponse `json:"messages"`
	HasMore        bool              `json:"has_more"`
}

type ConversationLeftEvent struct {
	ConversationId uuid.UUID `json:"conversation_id"`
}

type AskAck struct {
	Status         string    `json:"status"`
	ConversationId uuid.UUID `json:"conversation_id"`
	TurnId         uuid.UUID `json:"turn_id"`
	Created        bool      `json:"created"`
}

type ChatMessageEvent struct {
	MessageId      uuid.UUID `json:"message_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	TurnId         uuid.UUID `json:"turn_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Language       string    `json:"language"`
	Timestamp      time.Time `json:"timestamp"`
}

type AskResponseEvent struct {
	ConversationId uuid.UUID   `json:"conversation_id"`
	TurnId         uuid.UUID   `json:"turn_id"`
	Status         string      `json:"status"`
	Response       string      `json:"response"`
	Suggestions    []string    `json:"suggestions"`
	Sources        []SourceDTO `json:"sources"`
	UserMessageId  uuid.UUID   `json:"user_message_id"`
	MessageId      uuid.UUID   `json:"message_id"`
	Fallback       bool        `json:"fallback"`
	Timestamp      time.Time   `json:"timestamp"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type UserTypingEvent struct {
	SessionId      string     `json:"session_id"`
	UserId         *uuid.UUID `json:"user_id,omitempty"`
	ConversationId uuid.UUID  `json:"conversation_id"`
	IsTyping       bool       `json:"is_typing"`
}

type UserStatusEvent struct {
	SessionId      string     `json:"session_id"`
	UserId         *uuid.UUID `json:"user_id,omitempty"`
	ConversationId uuid.UUID  `json:"conversation_id"`
	Status         string     `json:"status"`
	LastActive     time.Time  `json:"last_active"`
}

type MessageStatusUpdatedEvent struct {
	MessageId      uuid.UUID `json:"message_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	Status         string    `json:"status"`
	ReadAt         time.Time `json:"read_at"`
}
