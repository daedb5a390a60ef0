package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const TurnEventsTopic = "chat_turns"

// TurnEvent summarizes a finished turn for analytics.
type TurnEvent struct {
	TurnId         uuid.UUID `json:"turn_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	UserId         uuid.UUID `json:"user_id"`
	Status         string    `json:"status"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer,omitempty"`
	Language       string    `json:"language"`
	Suggestions    []string  `json:"suggestions,omitempty"`
	Passages       int       `json:"passages"`
	Fallback       bool      `json:"fallback"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e TurnEvent) eventType() string {
	if e.Status == constant.TurnStatusCompleted {
		return events.ChatTurnCompleted
	}
	return events.ChatTurnFailed
}

type TurnEventPublisher interface {
	PublishTurn(ctx context.Context, event TurnEvent) error
}

type IPublisherService interface {
	TurnEventPublisher
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return ps.publisher.Publish(ps.topicName, msg)
}

func (ps *publisherService) PublishTurn(ctx context.Context, event TurnEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}
	return ps.Publish(ctx, payload)
}

// EventBus is the external bus turn events are forwarded to.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	bus        EventBus
	logger     logger.ILogger
}

// NewConsumerService reads turn events off the in-process bus, logs them and
// forwards them to bus. bus may be nil.
func NewConsumerService(subscriber message.Subscriber, topicName string, bus EventBus, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		bus:        bus,
		logger:     log,
	}
}

// Consume blocks until ctx is done.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			cs.processMessage(ctx, msg)
		}
	}
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// Acked even on failure: redelivery on an in-process channel would spin.
	defer msg.Ack()

	var event TurnEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Warn(constant.ModuleTurnEvents, "Dropping malformed turn event", map[string]interface{}{"error": err.Error()})
		return
	}

	cs.logger.Info(constant.ModuleTurnEvents, "Turn event", map[string]interface{}{
		"turn_id":         event.TurnId,
		"conversation_id": event.ConversationId,
		"status":          event.Status,
		"fallback":        event.Fallback,
		"passages":        event.Passages,
		"suggestions":     event.Suggestions,
		"duration_ms":     event.DurationMs,
	})

	if cs.bus == nil {
		return
	}

	err := cs.bus.Publish(ctx, events.BaseEvent{
		Type: event.eventType(),
		Data: map[string]interface{}{
			"turn_id":         event.TurnId.String(),
			"conversation_id": event.ConversationId.String(),
			"user_id":         event.UserId.String(),
			"status":          event.Status,
			"language":        event.Language,
			"suggestions":     event.Suggestions,
			"passages":        event.Passages,
			"fallback":        event.Fallback,
			"error":           event.Error,
			"duration_ms":     event.DurationMs,
		},
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		cs.logger.Warn(constant.ModuleTurnEvents, "Failed to forward turn event", map[string]interface{}{
			"turn_id": event.TurnId,
			"error":   err.Error(),
		})
	}
}
