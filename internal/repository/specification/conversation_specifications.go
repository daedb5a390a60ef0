package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OwnedBy struct {
	OwnerID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_id = ?", s.OwnerID)
}

type Archived struct {
	Archived bool
}

func (s Archived) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_archived = ?", s.Archived)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByConversationIDs struct {
	ConversationIDs []uuid.UUID
}

func (s ByConversationIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id IN ?", s.ConversationIDs)
}

// SentByUser filters messages on the is_user column.
type SentByUser struct {
	IsUser bool
}

func (s SentByUser) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_user = ?", s.IsUser)
}

// ConversationSearchQuery matches conversations on their title or on any of their
// messages' content, case insensitive.
type ConversationSearchQuery struct {
	Query string
}

func (s ConversationSearchQuery) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	sub := db.Session(&gorm.Session{NewDB: true}).
		Table("messages").
		Select("conversation_id").
		Where("content ILIKE ?", pattern)
	return db.Where("title ILIKE ? OR id IN (?)", pattern, sub)
}

// CreatedBefore filters messages strictly older than At.
type CreatedBefore struct {
	At time.Time
}

func (s CreatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at < ?", s.At)
}
