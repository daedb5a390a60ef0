package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id         uuid.UUID
	OwnerId    uuid.UUID
	Title      string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanAccess reports whether userId may read and write the conversation.
func (c *Conversation) CanAccess(userId uuid.UUID, isAdmin bool) bool {
	return isAdmin || (userId != uuid.Nil && c.OwnerId == userId)
}
