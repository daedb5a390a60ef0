package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/specification"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/tokenizer"

	"github.com/google/uuid"
)

type IConversationService interface {
	CreateConversation(ctx context.Context, ownerId uuid.UUID, title string) (*entity.Conversation, error)
	GetConversation(ctx context.Context, conversationId uuid.UUID) (*entity.Conversation, error)
	Authorize(ctx context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error)

	AppendMessage(ctx context.Context, conversationId uuid.UUID, content string, sender entity.Sender, language string, sources ...entity.MessageSource) (*entity.Message, error)
	ListMessages(ctx context.Context, conversationId uuid.UUID, limit, offset int) ([]*entity.Message, error)
	LatestMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, bool, error)
	RecentMessages(ctx context.Context, conversationId uuid.UUID, before time.Time, n int) ([]*entity.Message, error)
	CountMessages(ctx context.Context, conversationId uuid.UUID) (int64, error)
	MarkMessageRead(ctx context.Context, messageId, userId uuid.UUID, isAdmin bool) (*entity.Message, error)

	ListConversations(ctx context.Context, ownerId uuid.UUID, archived bool, limit, offset int) ([]*entity.Conversation, error)
	Search(ctx context.Context, ownerId uuid.UUID, query string, limit int) ([]*entity.Conversation, error)
	Archive(ctx context.Context, conversationId, ownerId uuid.UUID, archived bool) (*entity.Conversation, error)
	Rename(ctx context.Context, conversationId, ownerId uuid.UUID, title string) (*entity.Conversation, error)
	Delete(ctx context.Context, conversationId, ownerId uuid.UUID) error
	Stats(ctx context.Context, ownerId uuid.UUID) (*dto.ConversationStatsResponse, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	tokens     tokenizer.Counter
	logger     logger.ILogger
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, tokens tokenizer.Counter, log logger.ILogger) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		tokens:     tokens,
		logger:     log,
	}
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return constant.DefaultConversationTitle, nil
	}
	if utf8.RuneCountInString(title) > constant.MaxConversationTitle {
		return "", apperror.Validation("title must be at most 200 characters")
	}
	return title, nil
}

// now is truncated to what postgres stores so ordering comparisons hold
// after a round trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *conversationService) CreateConversation(ctx context.Context, ownerId uuid.UUID, title string) (*entity.Conversation, error) {
	if ownerId == uuid.Nil {
		return nil, apperror.New(apperror.ErrAuthRequired, "sign in to start a conversation")
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	ts := now()
	conversation := &entity.Conversation{
		Id:        uuid.New(),
		OwnerId:   ownerId,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, apperror.Persistence("create conversation", err)
	}

	s.logger.Info(constant.ModuleConversation, "Conversation created", map[string]interface{}{
		"conversation_id": conversation.Id,
		"owner_id":        ownerId,
	})
	return conversation, nil
}

func (s *conversationService) GetConversation(ctx context.Context, conversationId uuid.UUID) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, apperror.Persistence("load conversation", err)
	}
	if conversation == nil {
		return nil, apperror.NotFound("conversation not found")
	}
	return conversation, nil
}

func (s *conversationService) Authorize(ctx context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error) {
	conversation, err := s.GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if !conversation.CanAccess(userId, isAdmin) {
		return nil, apperror.Forbidden("you do not have access to this conversation")
	}
	return conversation, nil
}

// AppendMessage writes one message and bumps the conversation in a single
// transaction. created_at is kept strictly increasing within the conversation.
func (s *conversationService) AppendMessage(ctx context.Context, conversationId uuid.UUID, content string, sender entity.Sender, language string, sources ...entity.MessageSource) (*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Persistence("begin transaction", err)
	}
	defer uow.Rollback()

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, apperror.Persistence("load conversation", err)
	}
	if conversation == nil {
		return nil, apperror.NotFound("conversation not found")
	}

	last, err := uow.MessageRepository().LastCreatedAt(ctx, conversationId)
	if err != nil {
		return nil, apperror.Persistence("read last message time", err)
	}
	ts := now()
	if last != nil && !ts.After(*last) {
		ts = last.UTC().Add(time.Microsecond)
	}

	msg := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Content:        content,
		Sender:         sender,
		Language:       language,
		Tokens:         s.tokens.CountTokens(content),
		Sources:        sources,
		CreatedAt:      ts,
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return nil, apperror.Persistence("append message", err)
	}
	if err := uow.ConversationRepository().Touch(ctx, conversationId, ts); err != nil {
		return nil, apperror.Persistence("touch conversation", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperror.Persistence("commit message", err)
	}
	return msg, nil
}

func (s *conversationService) ListMessages(ctx context.Context, conversationId uuid.UUID, limit, offset int) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at"},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, apperror.Persistence("list messages", err)
	}
	return messages, nil
}

// LatestMessages returns the newest page in ascending order and whether older
// messages exist.
func (s *conversationService) LatestMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, bool, error) {
	total, err := s.CountMessages(ctx, conversationId)
	if err != nil {
		return nil, false, err
	}
	offset := 0
	if limit > 0 && total > int64(limit) {
		offset = int(total) - limit
	}
	messages, err := s.ListMessages(ctx, conversationId, limit, offset)
	if err != nil {
		return nil, false, err
	}
	return messages, offset > 0, nil
}

// RecentMessages returns up to n messages older than before, oldest first.
// A zero before means no upper bound.
func (s *conversationService) RecentMessages(ctx context.Context, conversationId uuid.UUID, before time.Time, n int) ([]*entity.Message, error) {
	if n <= 0 {
		return nil, nil
	}

	specs := []specification.Specification{
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: n},
	}
	if !before.IsZero() {
		specs = append(specs, specification.CreatedBefore{At: before})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperror.Persistence("load recent messages", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *conversationService) CountMessages(ctx context.Context, conversationId uuid.UUID) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	count, err := uow.MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conversationId})
	if err != nil {
		return 0, apperror.Persistence("count messages", err)
	}
	return count, nil
}

func (s *conversationService) MarkMessageRead(ctx context.Context, messageId, userId uuid.UUID, isAdmin bool) (*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	msg, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return nil, apperror.Persistence("load message", err)
	}
	if msg == nil {
		return nil, apperror.NotFound("message not found")
	}
	if _, err := s.Authorize(ctx, msg.ConversationId, userId, isAdmin); err != nil {
		return nil, err
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	at := now()
	if err := uow.MessageRepository().MarkRead(ctx, messageId, at); err != nil {
		return nil, apperror.Persistence("mark message read", err)
	}
	msg.ReadAt = &at
	return msg, nil
}

func (s *conversationService) ListConversations(ctx context.Context, ownerId uuid.UUID, archived bool, limit, offset int) ([]*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerId},
		specification.Archived{Archived: archived},
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, apperror.Persistence("list conversations", err)
	}
	return conversations, nil
}

func (s *conversationService) Search(ctx context.Context, ownerId uuid.UUID, query string, limit int) ([]*entity.Conversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("search query is empty")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerId},
		specification.ConversationSearchQuery{Query: query},
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, apperror.Persistence("search conversations", err)
	}
	return conversations, nil
}

func (s *conversationService) owned(ctx context.Context, uow unitofwork.UnitOfWork, conversationId, ownerId uuid.UUID) (*entity.Conversation, error) {
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, apperror.Persistence("load conversation", err)
	}
	if conversation == nil {
		return nil, apperror.NotFound("conversation not found")
	}
	if conversation.OwnerId != ownerId {
		return nil, apperror.Forbidden("you do not own this conversation")
	}
	return conversation, nil
}

func (s *conversationService) Archive(ctx context.Context, conversationId, ownerId uuid.UUID, archived bool) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := s.owned(ctx, uow, conversationId, ownerId)
	if err != nil {
		return nil, err
	}

	conversation.IsArchived = archived
	conversation.UpdatedAt = now()
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return nil, apperror.Persistence("archive conversation", err)
	}
	return conversation, nil
}

func (s *conversationService) Rename(ctx context.Context, conversationId, ownerId uuid.UUID, title string) (*entity.Conversation, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := s.owned(ctx, uow, conversationId, ownerId)
	if err != nil {
		return nil, err
	}

	conversation.Title = title
	conversation.UpdatedAt = now()
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return nil, apperror.Persistence("rename conversation", err)
	}
	return conversation, nil
}

func (s *conversationService) Delete(ctx context.Context, conversationId, ownerId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return apperror.Persistence("begin transaction", err)
	}
	defer uow.Rollback()

	if _, err := s.owned(ctx, uow, conversationId, ownerId); err != nil {
		return err
	}
	if err := uow.MessageRepository().DeleteByConversationId(ctx, conversationId); err != nil {
		return apperror.Persistence("delete messages", err)
	}
	if err := uow.ConversationRepository().Delete(ctx, conversationId); err != nil {
		return apperror.Persistence("delete conversation", err)
	}
	if err := uow.Commit(); err != nil {
		return apperror.Persistence("commit delete", err)
	}

	s.logger.Info(constant.ModuleConversation, "Conversation deleted", map[string]interface{}{
		"conversation_id": conversationId,
		"owner_id":        ownerId,
	})
	return nil
}

func (s *conversationService) Stats(ctx context.Context, ownerId uuid.UUID) (*dto.ConversationStatsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	owned := specification.OwnedBy{OwnerID: ownerId}

	total, err := uow.ConversationRepository().Count(ctx, owned)
	if err != nil {
		return nil, apperror.Persistence("count conversations", err)
	}
	archived, err := uow.ConversationRepository().Count(ctx, owned, specification.Archived{Archived: true})
	if err != nil {
		return nil, apperror.Persistence("count archived conversations", err)
	}

	res := &dto.ConversationStatsResponse{
		TotalConversations:    total,
		ArchivedConversations: archived,
	}
	if total == 0 {
		return res, nil
	}

	conversations, err := uow.ConversationRepository().FindAll(ctx, owned)
	if err != nil {
		return nil, apperror.Persistence("list conversations", err)
	}
	ids := make([]uuid.UUID, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.Id)
	}

	inOwned := specification.ByConversationIDs{ConversationIDs: ids}
	if res.UserMessages, err = uow.MessageRepository().Count(ctx, inOwned, specification.SentByUser{IsUser: true}); err != nil {
		return nil, apperror.Persistence("count user messages", err)
	}
	if res.AssistantMessages, err = uow.MessageRepository().Count(ctx, inOwned, specification.SentByUser{IsUser: false}); err != nil {
		return nil, apperror.Persistence("count assistant messages", err)
	}
	res.TotalMessages = res.UserMessages + res.AssistantMessages
	return res, nil
}
