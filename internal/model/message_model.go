package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Message struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	Content        string         `gorm:"type:text;not null"`
	IsUser         bool           `gorm:"not null"`
	Language       string         `gorm:"type:varchar(10);not null;default:'en'"`
	Tokens         int            `gorm:"not null;default:0"`
	Sources        datatypes.JSON `gorm:"type:jsonb"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}
