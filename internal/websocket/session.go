package websocket

import (
	"errors"
	"sync"
	"time"

	"rag-chat-be/internal/constant"

	"github.com/google/uuid"
)

var (
	errSessionClosed = errors.New("session closed")
	errBufferFull    = errors.New("send buffer full")
)

// Identity is the authenticated caller behind a connection. A nil UserID
// means the connection is anonymous.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Session is the registry's record of one live connection. Mutable state is
// only reachable through the Hub.
type Session struct {
	ID      string
	UserID  uuid.UUID
	IsAdmin bool

	// opMu serializes membership changes of this session. It is always taken
	// before any room lock.
	opMu sync.Mutex

	mu             sync.Mutex
	conversationID uuid.UUID
	presence       string
	typing         bool
	lastActive     time.Time
	send           chan []byte
	closed         bool
}

// SessionInfo is a point-in-time copy of a session's state.
type SessionInfo struct {
	ID             string
	UserID         uuid.UUID
	IsAdmin        bool
	ConversationID uuid.UUID
	Presence       string
	Typing         bool
	LastActive     time.Time
}

func newSession(identity Identity, buffer int) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UserID:     identity.UserID,
		IsAdmin:    identity.IsAdmin,
		presence:   constant.PresenceOnline,
		lastActive: time.Now(),
		send:       make(chan []byte, buffer),
	}
}

func (s *Session) Anonymous() bool {
	return s.UserID == uuid.Nil
}

// UserRef returns the user id for payloads, nil for anonymous sessions.
func (s *Session) UserRef() *uuid.UUID {
	if s.Anonymous() {
		return nil
	}
	id := s.UserID
	return &id
}

// Outbound is drained by the connection's write pump. It is closed once the
// session is unregistered.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:             s.ID,
		UserID:         s.UserID,
		IsAdmin:        s.IsAdmin,
		ConversationID: s.conversationID,
		Presence:       s.presence,
		Typing:         s.typing,
		LastActive:     s.lastActive,
	}
}

func (s *Session) conversation() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) setConversation(id uuid.UUID, presence string) {
	s.mu.Lock()
	s.conversationID = id
	s.presence = presence
	s.typing = false
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) setTyping(typing bool) {
	s.mu.Lock()
	s.typing = typing
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver queues a frame without blocking.
func (s *Session) deliver(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return errBufferFull
	}
}

// close marks the session offline and closes the outbound channel. It reports
// whether this call did the closing.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.presence = constant.PresenceOffline
	s.typing = false
	close(s.send)
	return true
}
