package model

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Title      string    `gorm:"type:varchar(200);not null"`
	IsArchived bool      `gorm:"not null;default:false;index"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;index"`
	Messages   []Message `gorm:"foreignKey:ConversationId;constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string {
	return "conversations"
}
