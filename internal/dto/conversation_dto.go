package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type UpdateConversationRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

type ListConversationsQuery struct {
	Archived bool `query:"archived"`
	Limit    int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int  `query:"offset" validate:"omitempty,min=0"`
}

type ListMessagesQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type SearchConversationsQuery struct {
	Query string `query:"q" validate:"required,max=200"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type ConversationResponse struct {
	Id         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SourceDTO struct {
	SourceId string  `json:"source_id"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score"`
}

type MessageResponse struct {
	Id             uuid.UUID   `json:"id"`
	ConversationId uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	Sender         string      `json:"sender"`
	Language       string      `json:"language"`
	Tokens         int         `json:"tokens"`
	Sources        []SourceDTO `json:"sources,omitempty"`
	Status         string      `json:"status"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ConversationMessagesResponse struct {
	ConversationId uuid.UUID         `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
	HasMore        bool              `json:"has_more"`
	Offset         int               `json:"offset"`
}

type ConversationStatsResponse struct {
	TotalConversations    int64 `json:"total_conversations"`
	ArchivedConversations int64 `json:"archived_conversations"`
	TotalMessages         int64 `json:"total_messages"`
	UserMessages          int64 `json:"user_messages"`
	AssistantMessages     int64 `json:"assistant_messages"`
}
