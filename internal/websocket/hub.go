package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries room broadcasts between instances.
const ClusterChannel = "chat_room_events"

var ErrSessionNotFound = apperror.NotFound("session not found")

// ConversationAccess decides whether a user may join a conversation.
type ConversationAccess interface {
	Authorize(ctx context.Context, conversationID, userID uuid.UUID, isAdmin bool) (*entity.Conversation, error)
}

type HubOptions struct {
	AllowAnonymous bool
	SendBuffer     int
	InstanceID     string
}

type room struct {
	mu      sync.RWMutex
	members map[string]*Session
}

// Hub is the session registry: live sessions, the rooms they joined, and
// delivery of events to those rooms.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// roomsMu guards the index only; membership is guarded per room.
	roomsMu sync.Mutex
	rooms   map[uuid.UUID]*room

	access ConversationAccess
	rdb    *redis.Client
	opts   HubOptions
	logger logger.ILogger
}

func NewHub(access ConversationAccess, rdb *redis.Client, opts HubOptions, log logger.ILogger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	return &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[uuid.UUID]*room),
		access:   access,
		rdb:      rdb,
		opts:     opts,
		logger:   log,
	}
}

func (h *Hub) Register(identity Identity) (*Session, error) {
	if identity.UserID == uuid.Nil && !h.opts.AllowAnonymous {
		return nil, apperror.New(apperror.ErrAuthRequired, "authentication required")
	}

	s := newSession(identity, h.opts.SendBuffer)

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	metrics.RecordSessionOpened()
	h.logger.Info(constant.ModuleSessionRegistry, "Session registered", map[string]interface{}{
		"session_id": s.ID,
		"user_id":    s.UserID,
	})
	return s, nil
}

// Join moves the session into the conversation's room after checking access.
// A previous room is left first.
func (h *Hub) Join(ctx context.Context, sessionID string, conversationID uuid.UUID) (*entity.Conversation, error) {
	s, ok := h.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Anonymous() {
		return nil, apperror.New(apperror.ErrAuthRequired, "sign in to open a conversation")
	}

	conv, err := h.access.Authorize(ctx, conversationID, s.UserID, s.IsAdmin)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.isClosed() {
		return nil, ErrSessionNotFound
	}

	prev := s.conversation()
	if prev != uuid.Nil && prev != conversationID {
		h.removeMember(prev, s)
		h.notifyPresence(prev, s, constant.PresenceOffline)
	}

	h.addMember(conversationID, s)
	s.setConversation(conversationID, constant.PresenceInChat)
	h.notifyPresence(conversationID, s, constant.PresenceInChat)

	h.logger.Info(constant.ModuleSessionRegistry, "Session joined conversation", map[string]interface{}{
		"session_id":      s.ID,
		"conversation_id": conversationID,
	})
	return conv, nil
}

// Leave clears membership and returns the conversation that was left, or
// uuid.Nil when the session had none.
func (h *Hub) Leave(sessionID string) (uuid.UUID, error) {
	s, ok := h.get(sessionID)
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	prev := s.conversation()
	if prev == uuid.Nil {
		return uuid.Nil, nil
	}

	h.removeMember(prev, s)
	s.setConversation(uuid.Nil, constant.PresenceOnline)
	h.notifyPresence(prev, s, constant.PresenceOffline)
	return prev, nil
}

func (h *Hub) SetTyping(sessionID string, isTyping bool) error {
	s, ok := h.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	conversationID := s.conversation()
	if conversationID == uuid.Nil {
		return apperror.Validation("join a conversation first")
	}

	s.setTyping(isTyping)
	return h.BroadcastExcept(conversationID, s.ID, dto.SocketEvent{
		Type: constant.EventUserTyping,
		Data: dto.UserTypingEvent{
			SessionId:      s.ID,
			UserId:         s.UserRef(),
			ConversationId: conversationID,
			IsTyping:       isTyping,
		},
	})
}

// Unregister drops the session. Calling it again is a no-op.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if !ok {
		return
	}

	s.opMu.Lock()
	prev := s.conversation()
	if prev != uuid.Nil {
		h.removeMember(prev, s)
	}
	s.close()
	s.opMu.Unlock()

	if prev != uuid.Nil {
		h.notifyPresence(prev, s, constant.PresenceOffline)
	}

	metrics.RecordSessionClosed()
	h.logger.Info(constant.ModuleSessionRegistry, "Session unregistered", map[string]interface{}{
		"session_id": s.ID,
		"user_id":    s.UserID,
	})
}

func (h *Hub) Broadcast(conversationID uuid.UUID, event dto.SocketEvent) error {
	return h.BroadcastExcept(conversationID, "", event)
}

// BroadcastExcept delivers event to every member of the room except the given
// session. Slow members are dropped rather than waited on.
func (h *Hub) BroadcastExcept(conversationID uuid.UUID, exceptSessionID string, event dto.SocketEvent) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.deliverToRoom(conversationID, exceptSessionID, frame)
	h.publish(conversationID, exceptSessionID, frame)
	return nil
}

// Send delivers event to one session on this instance.
func (h *Hub) Send(sessionID string, event dto.SocketEvent) error {
	s, ok := h.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.deliver(frame)
	switch {
	case errors.Is(err, errSessionClosed):
		return ErrSessionNotFound
	case errors.Is(err, errBufferFull):
		h.dropSlow(s)
		return err
	}
	return nil
}

func (h *Hub) Session(sessionID string) (SessionInfo, bool) {
	s, ok := h.get(sessionID)
	if !ok {
		return SessionInfo{}, false
	}
	return s.Info(), true
}

func (h *Hub) UserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) IsMember(sessionID string, conversationID uuid.UUID) bool {
	s, ok := h.get(sessionID)
	return ok && s.conversation() == conversationID
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Touch records client activity on the session.
func (h *Hub) Touch(sessionID string) {
	if s, ok := h.get(sessionID); ok {
		s.touch()
	}
}

func (h *Hub) get(sessionID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	return s, ok
}

func (h *Hub) addMember(conversationID uuid.UUID, s *Session) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	r, ok := h.rooms[conversationID]
	if !ok {
		r = &room{members: make(map[string]*Session)}
		h.rooms[conversationID] = r
	}
	r.mu.Lock()
	r.members[s.ID] = s
	r.mu.Unlock()
}

func (h *Hub) removeMember(conversationID uuid.UUID, s *Session) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	r, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.members, s.ID)
	empty := len(r.members) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, conversationID)
	}
}

// snapshot copies the room's members so delivery happens without the lock.
func (h *Hub) snapshot(conversationID uuid.UUID) []*Session {
	h.roomsMu.Lock()
	r, ok := h.rooms[conversationID]
	h.roomsMu.Unlock()
	if !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		members = append(members, s)
	}
	return members
}

func (h *Hub) deliverToRoom(conversationID uuid.UUID, exceptSessionID string, frame []byte) {
	for _, s := range h.snapshot(conversationID) {
		if s.ID == exceptSessionID {
			continue
		}
		if err := s.deliver(frame); errors.Is(err, errBufferFull) {
			h.dropSlow(s)
		}
	}
}

func (h *Hub) dropSlow(s *Session) {
	h.logger.Warn(constant.ModuleSessionRegistry, "Send buffer full, dropping session", map[string]interface{}{
		"session_id": s.ID,
		"user_id":    s.UserID,
	})
	go h.Unregister(s.ID)
}

func (h *Hub) notifyPresence(conversationID uuid.UUID, s *Session, presence string) {
	_ = h.BroadcastExcept(conversationID, s.ID, dto.SocketEvent{
		Type: constant.EventUserStatus,
		Data: dto.UserStatusEvent{
			SessionId:      s.ID,
			UserId:         s.UserRef(),
			ConversationId: conversationID,
			Status:         presence,
			LastActive:     time.Now(),
		},
	})
}

type clusterEnvelope struct {
	Origin          string          `json:"origin"`
	ConversationID  uuid.UUID       `json:"conversation_id"`
	ExceptSessionID string          `json:"except_session_id,omitempty"`
	Frame           json.RawMessage `json:"frame"`
}

func (h *Hub) publish(conversationID uuid.UUID, exceptSessionID string, frame []byte) {
	if h.rdb == nil {
		return
	}

	payload, err := json.Marshal(clusterEnvelope{
		Origin:          h.opts.InstanceID,
		ConversationID:  conversationID,
		ExceptSessionID: exceptSessionID,
		Frame:           frame,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn(constant.ModuleSessionRegistry, "Cluster publish failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
	}
}

// Run relays room broadcasts from other instances to local members until ctx
// is done. Without Redis it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.relay([]byte(msg.Payload))
		}
	}
}

func (h *Hub) relay(payload []byte) {
	var env clusterEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warn(constant.ModuleSessionRegistry, "Cluster message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if env.Origin == h.opts.InstanceID {
		return
	}
	h.deliverToRoom(env.ConversationID, env.ExceptSessionID, env.Frame)
}
