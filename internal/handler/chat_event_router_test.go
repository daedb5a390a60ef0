package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/service"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversations struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      map[uuid.UUID][]*entity.Message
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conversations: map[uuid.UUID]*entity.Conversation{},
		messages:      map[uuid.UUID][]*entity.Message{},
	}
}

func (f *fakeConversations) add(owner uuid.UUID, title string, n int) *entity.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &entity.Conversation{Id: uuid.New(), OwnerId: owner, Title: title}
	f.conversations[conv.Id] = conv
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		f.messages[conv.Id] = append(f.messages[conv.Id], &entity.Message{
			Id:             uuid.New(),
			ConversationId: conv.Id,
			Content:        fmt.Sprintf("message %d", i+1),
			Sender:         entity.SenderUser,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}
	return conv
}

func (f *fakeConversations) Authorize(_ context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationId]
	if !ok {
		return nil, apperror.NotFound("conversation not found")
	}
	if !conv.CanAccess(userId, isAdmin) {
		return nil, apperror.Forbidden("you do not have access to this conversation")
	}
	return conv, nil
}

func (f *fakeConversations) LatestMessages(_ context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[conversationId]
	if len(all) <= limit {
		return all, false, nil
	}
	return all[len(all)-limit:], true, nil
}

func (f *fakeConversations) ListMessages(_ context.Context, conversationId uuid.UUID, limit, offset int) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[conversationId]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeConversations) MarkMessageRead(_ context.Context, messageId, userId uuid.UUID, isAdmin bool) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for convID, msgs := range f.messages {
		for _, m := range msgs {
			if m.Id != messageId {
				continue
			}
			if !f.conversations[convID].CanAccess(userId, isAdmin) {
				return nil, apperror.Forbidden("you do not have access to this conversation")
			}
			at := time.Now()
			m.ReadAt = &at
			return m, nil
		}
	}
	return nil, apperror.NotFound("message not found")
}

type fakePipeline struct {
	mu        sync.Mutex
	origins   []service.Origin
	questions []string
	err       error
}

func (p *fakePipeline) HandleQuestion(_ context.Context, origin service.Origin, req *dto.AskRequest) (*dto.AskAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.origins = append(p.origins, origin)
	p.questions = append(p.questions, req.Question)
	convID := uuid.New()
	created := true
	if req.ConversationId != nil {
		convID, created = *req.ConversationId, false
	}
	return &dto.AskAck{Status: constant.AckStatusProcessing, ConversationId: convID, TurnId: uuid.New(), Created: created}, nil
}

func (p *fakePipeline) Shutdown(context.Context) error { return nil }

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RequestId string          `json:"request_id"`
}

func next(t *testing.T, s *internalWS.Session) frame {
	t.Helper()
	select {
	case raw, ok := <-s.Outbound():
		require.True(t, ok, "outbound closed")
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return frame{}
	}
}

func assertQuiet(t *testing.T, s *internalWS.Session) {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(30 * time.Millisecond):
	}
}

func nextError(t *testing.T, s *internalWS.Session) (dto.ErrorEvent, string) {
	t.Helper()
	f := next(t, s)
	require.Equal(t, constant.EventError, f.Type)
	var e dto.ErrorEvent
	require.NoError(t, json.Unmarshal(f.Data, &e))
	return e, f.RequestId
}

type routerFixture struct {
	hub      *internalWS.Hub
	router   *ChatEventRouter
	convs    *fakeConversations
	pipeline *fakePipeline
}

func newRouterFixture(t *testing.T, allowAnonymous bool) *routerFixture {
	t.Helper()
	convs := newFakeConversations()
	hub := internalWS.NewHub(convs, nil, internalWS.HubOptions{AllowAnonymous: allowAnonymous, SendBuffer: 32}, logger.NewNopLogger())
	pipeline := &fakePipeline{}
	return &routerFixture{
		hub:      hub,
		router:   NewChatEventRouter(hub, pipeline, convs, 2, logger.NewNopLogger()),
		convs:    convs,
		pipeline: pipeline,
	}
}

func (f *routerFixture) register(t *testing.T, userID uuid.UUID) *internalWS.Session {
	t.Helper()
	s, err := f.hub.Register(internalWS.Identity{UserID: userID})
	require.NoError(t, err)
	return s
}

func (f *routerFixture) dispatch(s *internalWS.Session, eventType, requestID string, data interface{}) {
	raw, _ := json.Marshal(data)
	f.router.Dispatch(context.Background(), s.ID, &dto.InboundEvent{Type: eventType, Data: raw, RequestId: requestID})
}

func TestJoinSendsRecentHistory(t *testing.T) {
	f := newRouterFixture(t, false)
	owner := uuid.New()
	conv := f.convs.add(owner, "Handbook", 3)
	s := f.register(t, owner)

	f.dispatch(s, constant.EventJoinConversation, "r1", dto.JoinConversationRequest{ConversationId: conv.Id})

	got := next(t, s)
	require.Equal(t, constant.EventConversationJoined, got.Type)
	assert.Equal(t, "r1", got.RequestId)

	var joined dto.ConversationJoinedEvent
	require.NoError(t, json.Unmarshal(got.Data, &joined))
	assert.Equal(t, conv.Id, joined.ConversationId)
	assert.Equal(t, "Handbook", joined.Title)
	assert.True(t, joined.HasMore)
	require.Len(t, joined.Messages, 2)
	assert.Equal(t, "message 2", joined.Messages[0].Content)
	assert.Equal(t, "message 3", joined.Messages[1].Content)
	assert.True(t, f.hub.IsMember(s.ID, conv.Id))
}

func TestJoinErrorsCarryRequestID(t *testing.T) {
	f := newRouterFixture(t, true)
	conv := f.convs.add(uuid.New(), "Private", 0)

	tests := []struct {
		name     string
		userID   uuid.UUID
		data     interface{}
		wantCode string
	}{
		{"foreign conversation", uuid.New(), dto.JoinConversationRequest{ConversationId: conv.Id}, "forbidden"},
		{"unknown conversation", uuid.New(), dto.JoinConversationRequest{ConversationId: uuid.New()}, "not_found"},
		{"missing id", uuid.New(), map[string]string{}, "validation_error"},
		{"anonymous", uuid.Nil, dto.JoinConversationRequest{ConversationId: conv.Id}, "auth_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := f.register(t, tt.userID)
			f.dispatch(s, constant.EventJoinConversation, "req-"+tt.name, tt.data)

			e, requestID := nextError(t, s)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, "req-"+tt.name, requestID)
			assert.False(t, f.hub.IsMember(s.ID, conv.Id))
		})
	}
}

func TestUnknownEventType(t *testing.T) {
	f := newRouterFixture(t, false)
	s := f.register(t, uuid.New())

	f.dispatch(s, "shout", "x", nil)

	e, requestID := nextError(t, s)
	assert.Equal(t, "validation_error", e.Code)
	assert.Equal(t, "x", requestID)
}

func TestAskForwardsOrigin(t *testing.T) {
	f := newRouterFixture(t, false)
	user := uuid.New()
	s := f.register(t, user)

	f.dispatch(s, constant.EventAsk, "q1", dto.AskRequest{Question: "What is the leave policy?", Language: "en"})

	require.Len(t, f.pipeline.origins, 1)
	assert.Equal(t, service.Origin{SessionID: s.ID, UserID: user, RequestID: "q1"}, f.pipeline.origins[0])
	// the ack belongs to the pipeline; the router adds nothing on success
	assertQuiet(t, s)
}

func TestAskLengthIsCheckedAfterTrimming(t *testing.T) {
	f := newRouterFixture(t, false)
	s := f.register(t, uuid.New())

	padded := "  \n" + strings.Repeat("a", constant.MaxQuestionRunes) + "\n  "
	f.dispatch(s, constant.EventAsk, "q1", dto.AskRequest{Question: padded})

	assertQuiet(t, s)
	require.Len(t, f.pipeline.origins, 1)
	assert.Equal(t, padded, f.pipeline.questions[0])
}

func TestAskRejections(t *testing.T) {
	f := newRouterFixture(t, false)
	s := f.register(t, uuid.New())

	f.dispatch(s, constant.EventAsk, "", map[string]interface{}{"question": 42})
	e, _ := nextError(t, s)
	assert.Equal(t, "validation_error", e.Code)

	f.pipeline.err = apperror.Forbidden("you do not have access to this conversation")
	f.dispatch(s, constant.EventAsk, "q2", dto.AskRequest{Question: "hi"})
	e, requestID := nextError(t, s)
	assert.Equal(t, "forbidden", e.Code)
	assert.Equal(t, "q2", requestID)

	f.pipeline.err = errors.New("db exploded")
	f.dispatch(s, constant.EventAsk, "q3", dto.AskRequest{Question: "hi"})
	e, _ = nextError(t, s)
	assert.Equal(t, "internal_error", e.Code)
	assert.Equal(t, "internal server error", e.Message)
}

func TestTypingReachesOtherMembers(t *testing.T) {
	f := newRouterFixture(t, false)
	owner := uuid.New()
	conv := f.convs.add(owner, "Shared", 0)
	a := f.register(t, owner)
	b := f.register(t, owner)

	f.dispatch(a, constant.EventTyping, "", dto.TypingRequest{ConversationId: conv.Id, IsTyping: true})
	e, _ := nextError(t, a)
	assert.Equal(t, "validation_error", e.Code)

	f.dispatch(a, constant.EventJoinConversation, "", dto.JoinConversationRequest{ConversationId: conv.Id})
	next(t, a)
	f.dispatch(b, constant.EventJoinConversation, "", dto.JoinConversationRequest{ConversationId: conv.Id})
	next(t, b)
	assert.Equal(t, constant.EventUserStatus, next(t, a).Type)

	f.dispatch(a, constant.EventTyping, "", dto.TypingRequest{ConversationId: conv.Id, IsTyping: true})

	got := next(t, b)
	require.Equal(t, constant.EventUserTyping, got.Type)
	var typing dto.UserTypingEvent
	require.NoError(t, json.Unmarshal(got.Data, &typing))
	assert.Equal(t, a.ID, typing.SessionId)
	assert.True(t, typing.IsTyping)
	assertQuiet(t, a)
}

func TestMessageStatusBroadcastsToRoom(t *testing.T) {
	f := newRouterFixture(t, false)
	owner := uuid.New()
	conv := f.convs.add(owner, "Shared", 1)
	msgID := f.convs.messages[conv.Id][0].Id
	a := f.register(t, owner)
	b := f.register(t, owner)
	for _, s := range []*internalWS.Session{a, b} {
		f.dispatch(s, constant.EventJoinConversation, "", dto.JoinConversationRequest{ConversationId: conv.Id})
		next(t, s)
	}
	next(t, a) // b's presence

	f.dispatch(a, constant.EventMessageStatus, "m1", dto.MessageStatusRequest{MessageId: msgID, Status: "read"})

	for _, s := range []*internalWS.Session{a, b} {
		got := next(t, s)
		require.Equal(t, constant.EventMessageStatusUpdated, got.Type)
		var upd dto.MessageStatusUpdatedEvent
		require.NoError(t, json.Unmarshal(got.Data, &upd))
		assert.Equal(t, msgID, upd.MessageId)
		assert.Equal(t, "read", upd.Status)
		assert.False(t, upd.ReadAt.IsZero())
	}

	f.dispatch(a, constant.EventMessageStatus, "", dto.MessageStatusRequest{MessageId: msgID, Status: "seen"})
	e, _ := nextError(t, a)
	assert.Equal(t, "validation_error", e.Code)
}

func TestHistoryPaging(t *testing.T) {
	f := newRouterFixture(t, false)
	owner := uuid.New()
	conv := f.convs.add(owner, "Long", 5)
	s := f.register(t, owner)

	tests := []struct {
		offset   int
		wantLen  int
		wantMore bool
		first    string
	}{
		{0, 2, true, "message 1"},
		{2, 2, true, "message 3"},
		{4, 1, false, "message 5"},
	}

	for _, tt := range tests {
		f.dispatch(s, constant.EventRequestConversationHistory, "", dto.ConversationHistoryRequest{ConversationId: conv.Id, Limit: 2, Offset: tt.offset})

		got := next(t, s)
		require.Equal(t, constant.EventConversationHistory, got.Type)
		var page dto.ConversationMessagesResponse
		require.NoError(t, json.Unmarshal(got.Data, &page))
		require.Len(t, page.Messages, tt.wantLen)
		assert.Equal(t, tt.wantMore, page.HasMore)
		assert.Equal(t, tt.offset, page.Offset)
		assert.Equal(t, tt.first, page.Messages[0].Content)
	}

	f.dispatch(s, constant.EventRequestConversationHistory, "", dto.ConversationHistoryRequest{ConversationId: conv.Id, Limit: 500})
	e, _ := nextError(t, s)
	assert.Equal(t, "validation_error", e.Code)

	stranger := f.register(t, uuid.New())
	f.dispatch(stranger, constant.EventRequestConversationHistory, "", dto.ConversationHistoryRequest{ConversationId: conv.Id})
	e, _ = nextError(t, stranger)
	assert.Equal(t, "forbidden", e.Code)
}

func TestLeaveReportsFormerConversation(t *testing.T) {
	f := newRouterFixture(t, false)
	owner := uuid.New()
	conv := f.convs.add(owner, "Room", 0)
	s := f.register(t, owner)

	f.dispatch(s, constant.EventJoinConversation, "", dto.JoinConversationRequest{ConversationId: conv.Id})
	next(t, s)
	f.dispatch(s, constant.EventLeaveConversation, "l1", nil)

	got := next(t, s)
	require.Equal(t, constant.EventConversationLeft, got.Type)
	var left dto.ConversationLeftEvent
	require.NoError(t, json.Unmarshal(got.Data, &left))
	assert.Equal(t, conv.Id, left.ConversationId)
	assert.False(t, f.hub.IsMember(s.ID, conv.Id))
}

func TestDispatchForUnknownSessionIsIgnored(t *testing.T) {
	f := newRouterFixture(t, false)
	assert.NotPanics(t, func() {
		f.router.Dispatch(context.Background(), "gone", &dto.InboundEvent{Type: constant.EventAsk})
	})
}
