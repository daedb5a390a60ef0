package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/specification"
	"rag-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for postgres. Transactions are not
// isolated; Begin/Commit/Rollback only track state.
type memStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      []*entity.Message

	// failCreate, when set, is consulted before each message insert.
	failCreate func(msg *entity.Message) error
}

func newMemStore() *memStore {
	return &memStore{conversations: make(map[uuid.UUID]*entity.Conversation)}
}

func (s *memStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUow{store: s}
}

func (s *memStore) messagesOf(conversationId uuid.UUID) []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Message
	for _, m := range s.messages {
		if m.ConversationId == conversationId {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

type memUow struct {
	store *memStore
	open  bool
}

func (u *memUow) Begin(ctx context.Context) error { u.open = true; return nil }
func (u *memUow) Commit() error                   { u.open = false; return nil }
func (u *memUow) Rollback() error                 { u.open = false; return nil }

func (u *memUow) ConversationRepository() contract.ConversationRepository {
	return &memConversationRepo{store: u.store}
}

func (u *memUow) MessageRepository() contract.MessageRepository {
	return &memMessageRepo{store: u.store}
}

func (u *memUow) DocumentChunkRepository() contract.DocumentChunkRepository {
	return nil
}

type query struct {
	id              *uuid.UUID
	owner           *uuid.UUID
	archived        *bool
	conversationID  *uuid.UUID
	conversationIDs []uuid.UUID
	isUser          *bool
	before          *time.Time
	search          string
	orderField      string
	desc            bool
	limit, offset   int
}

func parse(specs []specification.Specification) query {
	var q query
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			q.id = &s.ID
		case specification.OwnedBy:
			q.owner = &s.OwnerID
		case specification.Archived:
			q.archived = &s.Archived
		case specification.ByConversationID:
			q.conversationID = &s.ConversationID
		case specification.ByConversationIDs:
			q.conversationIDs = s.ConversationIDs
		case specification.SentByUser:
			q.isUser = &s.IsUser
		case specification.CreatedBefore:
			q.before = &s.At
		case specification.ConversationSearchQuery:
			q.search = strings.ToLower(s.Query)
		case specification.OrderBy:
			q.orderField, q.desc = s.Field, s.Desc
		case specification.Pagination:
			q.limit, q.offset = s.Limit, s.Offset
		}
	}
	return q
}

func page[T any](items []T, q query) []T {
	if q.offset > 0 {
		if q.offset >= len(items) {
			return nil
		}
		items = items[q.offset:]
	}
	if q.limit > 0 && len(items) > q.limit {
		items = items[:q.limit]
	}
	return items
}

type memConversationRepo struct {
	store *memStore
}

func (r *memConversationRepo) Create(ctx context.Context, c *entity.Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *c
	r.store.conversations[c.Id] = &cp
	return nil
}

func (r *memConversationRepo) Update(ctx context.Context, c *entity.Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *c
	r.store.conversations[c.Id] = &cp
	return nil
}

func (r *memConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.conversations, id)
	return nil
}

func (r *memConversationRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.conversations[id]; ok && c.UpdatedAt.Before(at) {
		c.UpdatedAt = at
	}
	return nil
}

func (r *memConversationRepo) match(specs []specification.Specification) []*entity.Conversation {
	q := parse(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.Conversation
	for _, c := range r.store.conversations {
		if q.id != nil && c.Id != *q.id {
			continue
		}
		if q.owner != nil && c.OwnerId != *q.owner {
			continue
		}
		if q.archived != nil && c.IsArchived != *q.archived {
			continue
		}
		if q.search != "" && !r.matchesSearch(c, q.search) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.desc {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return page(out, q)
}

func (r *memConversationRepo) matchesSearch(c *entity.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(c.Title), needle) {
		return true
	}
	for _, m := range r.store.messages {
		if m.ConversationId == c.Id && strings.Contains(strings.ToLower(m.Content), needle) {
			return true
		}
	}
	return false
}

func (r *memConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	out := r.match(specs)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *memConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	return r.match(specs), nil
}

func (r *memConversationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.match(specs))), nil
}

type memMessageRepo struct {
	store *memStore
}

func (r *memMessageRepo) Create(ctx context.Context, m *entity.Message) error {
	if r.store.failCreate != nil {
		if err := r.store.failCreate(m); err != nil {
			return err
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.messages = append(r.store.messages, &cp)
	return nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.Id == id && m.ReadAt == nil {
			m.ReadAt = &at
		}
	}
	return nil
}

func (r *memMessageRepo) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.messages[:0]
	for _, m := range r.store.messages {
		if m.ConversationId != conversationId {
			kept = append(kept, m)
		}
	}
	r.store.messages = kept
	return nil
}

func (r *memMessageRepo) LastCreatedAt(ctx context.Context, conversationId uuid.UUID) (*time.Time, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var last *time.Time
	for _, m := range r.store.messages {
		if m.ConversationId == conversationId && (last == nil || m.CreatedAt.After(*last)) {
			at := m.CreatedAt
			last = &at
		}
	}
	return last, nil
}

func (r *memMessageRepo) match(specs []specification.Specification) []*entity.Message {
	q := parse(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var ids map[uuid.UUID]bool
	if q.conversationIDs != nil {
		ids = make(map[uuid.UUID]bool, len(q.conversationIDs))
		for _, id := range q.conversationIDs {
			ids[id] = true
		}
	}

	var out []*entity.Message
	for _, m := range r.store.messages {
		if q.id != nil && m.Id != *q.id {
			continue
		}
		if q.conversationID != nil && m.ConversationId != *q.conversationID {
			continue
		}
		if ids != nil && !ids[m.ConversationId] {
			continue
		}
		if q.isUser != nil && m.IsUser() != *q.isUser {
			continue
		}
		if q.before != nil && !m.CreatedAt.Before(*q.before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, q)
}

func (r *memMessageRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	out := r.match(specs)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *memMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	return r.match(specs), nil
}

func (r *memMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.match(specs))), nil
}
