package contract

import (
	"context"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
	// LastCreatedAt returns the newest created_at in the conversation, nil when it has no messages.
	LastCreatedAt(ctx context.Context, conversationId uuid.UUID) (*time.Time, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
