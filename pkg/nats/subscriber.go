package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"rag-chat-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber consumes events through durable JetStream consumers.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// DecodeEvent accepts both the envelope format and a bare payload object. The
// event type falls back to the subject suffix.
func DecodeEvent(subject string, data []byte) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.BaseEvent{}, err
	}
	if env.Type == "" || env.Data == nil {
		var payload map[string]interface{}
		if err := json.Unmarshal(data, &payload); err != nil {
			return events.BaseEvent{}, err
		}
		env.Data = payload
		env.Type = strings.TrimPrefix(subject, SubjectPrefix)
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	return events.BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}

// Subscribe runs handler for every message on subject until ctx is done.
// Failed messages are redelivered.
func (s *Subscriber) Subscribe(ctx context.Context, subject string, durableName string, handler EventHandler) error {
	if err := ensureStream(ctx, s.js); err != nil {
		log.Printf("Warn: Failed to ensure stream '%s': %v", StreamName, err)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeEvent(msg.Subject(), msg.Data())
		if err != nil {
			log.Printf("Error unmarshalling event data on %s: %v", msg.Subject(), err)
			// Malformed payloads will never succeed.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", subject, err)
	}

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	<-ctx.Done()
	consumeCtx.Stop()
	return nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
