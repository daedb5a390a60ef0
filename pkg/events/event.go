package events

import "time"

// Event types published on the bus. Subjects are "events.<type>".
const (
	ChatTurnCompleted    = "CHAT_TURN_COMPLETED"
	ChatTurnFailed       = "CHAT_TURN_FAILED"
	DocumentIndexUpdated = "DOCUMENT_INDEX_UPDATED"
)

// Event defines the contract for all system events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
