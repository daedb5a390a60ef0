package mapper

import (
	"encoding/json"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	return &entity.Conversation{
		Id:         c.Id,
		OwnerId:    c.OwnerId,
		Title:      c.Title,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}
	return &model.Conversation{
		Id:         c.Id,
		OwnerId:    c.OwnerId,
		Title:      c.Title,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (m *ConversationMapper) ConversationsToEntities(models []*model.Conversation) []*entity.Conversation {
	entities := make([]*entity.Conversation, len(models))
	for i, c := range models {
		entities[i] = m.ConversationToEntity(c)
	}
	return entities
}

func (m *ConversationMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	sender := entity.SenderAssistant
	if msg.IsUser {
		sender = entity.SenderUser
	}

	var sources []entity.MessageSource
	if len(msg.Sources) > 0 {
		// Malformed source payloads are dropped, the message itself stays readable.
		_ = json.Unmarshal(msg.Sources, &sources)
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Content:        msg.Content,
		Sender:         sender,
		Language:       msg.Language,
		Tokens:         msg.Tokens,
		Sources:        sources,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ConversationMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var sources datatypes.JSON
	if len(msg.Sources) > 0 {
		if raw, err := json.Marshal(msg.Sources); err == nil {
			sources = datatypes.JSON(raw)
		}
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Content:        msg.Content,
		IsUser:         msg.Sender == entity.SenderUser,
		Language:       msg.Language,
		Tokens:         msg.Tokens,
		Sources:        sources,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ConversationMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}

func (m *ConversationMapper) ConversationToResponse(c *entity.Conversation) dto.ConversationResponse {
	return dto.ConversationResponse{
		Id:         c.Id,
		Title:      c.Title,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (m *ConversationMapper) ConversationsToResponses(conversations []*entity.Conversation) []dto.ConversationResponse {
	res := make([]dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, m.ConversationToResponse(c))
	}
	return res
}

func (m *ConversationMapper) SourcesToDTO(sources []entity.MessageSource) []dto.SourceDTO {
	res := make([]dto.SourceDTO, 0, len(sources))
	for _, s := range sources {
		res = append(res, dto.SourceDTO{SourceId: s.SourceId, Snippet: s.Snippet, Score: s.Score})
	}
	return res
}

func (m *ConversationMapper) MessageToResponse(msg *entity.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Content:        msg.Content,
		Sender:         string(msg.Sender),
		Language:       msg.Language,
		Tokens:         msg.Tokens,
		Sources:        m.SourcesToDTO(msg.Sources),
		Status:         string(msg.Status()),
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ConversationMapper) MessagesToResponses(messages []*entity.Message) []dto.MessageResponse {
	res := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		res = append(res, m.MessageToResponse(msg))
	}
	return res
}
