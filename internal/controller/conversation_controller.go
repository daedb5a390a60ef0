package controller

import (
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultPageSize = 20

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type conversationController struct {
	service   service.IConversationService
	mapper    *mapper.ConversationMapper
	jwtSecret string
}

func NewConversationController(service service.IConversationService, jwtSecret string) IConversationController {
	return &conversationController{
		service:   service,
		mapper:    mapper.NewConversationMapper(),
		jwtSecret: jwtSecret,
	}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversations")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get("/search", c.Search)
	h.Get("/stats", c.Stats)
	h.Get("/:id", c.Show)
	h.Get("/:id/messages", c.Messages)
	h.Patch("/:id", c.Update)
	h.Delete("/:id", c.Delete)
}

func conversationID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid conversation id")
	}
	return id, nil
}

func (c *conversationController) List(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var q dto.ListConversationsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	res, err := c.service.ListConversations(ctx.UserContext(), identity.UserID, q.Archived, q.Limit, q.Offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", c.mapper.ConversationsToResponses(res)))
}

func (c *conversationController) Create(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateConversation(ctx.UserContext(), identity.UserID, req.Title)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", c.mapper.ConversationToResponse(res)))
}

func (c *conversationController) Search(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var q dto.SearchConversationsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	res, err := c.service.Search(ctx.UserContext(), identity.UserID, q.Query, q.Limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search conversations", c.mapper.ConversationsToResponses(res)))
}

func (c *conversationController) Stats(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Stats(ctx.UserContext(), identity.UserID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation stats", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Authorize(ctx.UserContext(), id, identity.UserID, identity.IsAdmin)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", c.mapper.ConversationToResponse(res)))
}

func (c *conversationController) Messages(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	var q dto.ListMessagesQuery
	if err := ctx.QueryParser(&q); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	if _, err := c.service.Authorize(ctx.UserContext(), id, identity.UserID, identity.IsAdmin); err != nil {
		return err
	}

	// one extra row tells whether another page exists
	messages, err := c.service.ListMessages(ctx.UserContext(), id, q.Limit+1, q.Offset)
	if err != nil {
		return err
	}
	hasMore := len(messages) > q.Limit
	if hasMore {
		messages = messages[:q.Limit]
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", dto.ConversationMessagesResponse{
		ConversationId: id,
		Messages:       c.mapper.MessagesToResponses(messages),
		HasMore:        hasMore,
		Offset:         q.Offset,
	}))
}

func (c *conversationController) Update(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	var req dto.UpdateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Title == nil && req.IsArchived == nil {
		return apperror.Validation("nothing to update")
	}

	var res *entity.Conversation
	if req.Title != nil {
		if res, err = c.service.Rename(ctx.UserContext(), id, identity.UserID, *req.Title); err != nil {
			return err
		}
	}
	if req.IsArchived != nil {
		if res, err = c.service.Archive(ctx.UserContext(), id, identity.UserID, *req.IsArchived); err != nil {
			return err
		}
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update conversation", c.mapper.ConversationToResponse(res)))
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.UserContext(), id, identity.UserID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}
