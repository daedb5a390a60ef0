package entity

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type MessageStatus string

const (
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// MessageSource references a document passage used for an assistant answer.
type MessageSource struct {
	SourceId string  `json:"source_id"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Content        string
	Sender         Sender
	Language       string
	Tokens         int
	Sources        []MessageSource
	ReadAt         *time.Time
	CreatedAt      time.Time
}

func (m *Message) IsUser() bool {
	return m.Sender == SenderUser
}

func (m *Message) Status() MessageStatus {
	if m.ReadAt != nil {
		return MessageStatusRead
	}
	return MessageStatusDelivered
}
