package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// stubService overrides the calls a test needs; anything else panics.
type stubService struct {
	service.IConversationService

	conversations map[uuid.UUID]*entity.Conversation
	messages      []*entity.Message
	lastLimit     int
	renamed       string
	archived      *bool
}

func (s *stubService) Authorize(_ context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error) {
	conv, ok := s.conversations[conversationId]
	if !ok {
		return nil, apperror.NotFound("conversation not found")
	}
	if !conv.CanAccess(userId, isAdmin) {
		return nil, apperror.Forbidden("you do not have access to this conversation")
	}
	return conv, nil
}

func (s *stubService) CreateConversation(_ context.Context, ownerId uuid.UUID, title string) (*entity.Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	return &entity.Conversation{Id: uuid.New(), OwnerId: ownerId, Title: title}, nil
}

func (s *stubService) ListMessages(_ context.Context, _ uuid.UUID, limit, offset int) ([]*entity.Message, error) {
	s.lastLimit = limit
	if offset >= len(s.messages) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.messages) {
		end = len(s.messages)
	}
	return s.messages[offset:end], nil
}

func (s *stubService) Rename(_ context.Context, conversationId, ownerId uuid.UUID, title string) (*entity.Conversation, error) {
	s.renamed = title
	conv := *s.conversations[conversationId]
	conv.Title = title
	return &conv, nil
}

func (s *stubService) Archive(_ context.Context, conversationId, ownerId uuid.UUID, archived bool) (*entity.Conversation, error) {
	s.archived = &archived
	conv := *s.conversations[conversationId]
	conv.IsArchived = archived
	return &conv, nil
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestApp(svc *stubService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewConversationController(svc, testSecret).RegisterRoutes(app.Group("/api"))
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, app *fiber.App, method, path, bearer, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env
}

func TestConversationRoutesRequireToken(t *testing.T) {
	app := newTestApp(&stubService{})

	status, env := do(t, app, http.MethodGet, "/api/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Missing token", env.Message)

	status, _ = do(t, app, http.MethodGet, "/api/conversations", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestShowConversationAccess(t *testing.T) {
	owner := uuid.New()
	conv := &entity.Conversation{Id: uuid.New(), OwnerId: owner, Title: "Handbook"}
	app := newTestApp(&stubService{conversations: map[uuid.UUID]*entity.Conversation{conv.Id: conv}})

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"owner", "/api/conversations/" + conv.Id.String(), token(t, owner, "user"), http.StatusOK},
		{"admin", "/api/conversations/" + conv.Id.String(), token(t, uuid.New(), "admin"), http.StatusOK},
		{"stranger", "/api/conversations/" + conv.Id.String(), token(t, uuid.New(), "user"), http.StatusForbidden},
		{"missing", "/api/conversations/" + uuid.NewString(), token(t, owner, "user"), http.StatusNotFound},
		{"bad id", "/api/conversations/abc", token(t, owner, "user"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, http.MethodGet, tt.path, tt.bearer, "")
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want == http.StatusOK, env.Success)
		})
	}
}

func TestCreateConversationValidatesTitle(t *testing.T) {
	app := newTestApp(&stubService{})
	bearer := token(t, uuid.New(), "user")

	status, env := do(t, app, http.MethodPost, "/api/conversations", bearer, `{"title":"Travel policy"}`)
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Travel policy", created.Title)

	status, env = do(t, app, http.MethodPost, "/api/conversations", bearer, `{"title":"`+strings.Repeat("x", 201)+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title must be at most 200 characters", env.Message)
}

func TestMessagesPaging(t *testing.T) {
	owner := uuid.New()
	conv := &entity.Conversation{Id: uuid.New(), OwnerId: owner}
	svc := &stubService{conversations: map[uuid.UUID]*entity.Conversation{conv.Id: conv}}
	for i := 0; i < 3; i++ {
		svc.messages = append(svc.messages, &entity.Message{Id: uuid.New(), ConversationId: conv.Id, Sender: entity.SenderUser})
	}
	app := newTestApp(svc)

	status, env := do(t, app, http.MethodGet, "/api/conversations/"+conv.Id.String()+"/messages?limit=2", token(t, owner, "user"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, svc.lastLimit)

	var page struct {
		Messages []json.RawMessage `json:"messages"`
		HasMore  bool              `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)

	status, _ = do(t, app, http.MethodGet, "/api/conversations/"+conv.Id.String()+"/messages?limit=1000", token(t, owner, "user"), "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateConversation(t *testing.T) {
	owner := uuid.New()
	conv := &entity.Conversation{Id: uuid.New(), OwnerId: owner, Title: "Old"}
	svc := &stubService{conversations: map[uuid.UUID]*entity.Conversation{conv.Id: conv}}
	app := newTestApp(svc)
	path := "/api/conversations/" + conv.Id.String()
	bearer := token(t, owner, "user")

	status, _ := do(t, app, http.MethodPatch, path, bearer, `{"title":"New","is_archived":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "New", svc.renamed)
	require.NotNil(t, svc.archived)
	assert.True(t, *svc.archived)

	status, env := do(t, app, http.MethodPatch, path, bearer, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "nothing to update", env.Message)
}
