// Package kafka contains repositories backed by Kafka.
package kafka

import (
	"context"
	"fmt"
	"time"

	"encoding/json"

	kafkaLib "github.com/segmentio/kafka-go"

	auth "github.com/eidcore/authsteps"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaLib.Message) error
}

// EventRepository writes audit events to a Kafka topic.
type EventRepository struct {
	writer messageWriter
}

// NewEventRepository returns a new implementation of auth.EventRepository.
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{
		writer: client.EventWriter,
	}
}

// Publish writes an event to topic `authsteps.events.audit`, keyed by
// the subject identifier.
func (r *EventRepository) Publish(ctx context.Context, event *auth.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.writer.WriteMessages(ctx, kafkaLib.Message{
		Key:   []byte(event.Identifier),
		Value: b,
	})
}
