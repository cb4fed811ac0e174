package events

import (
	"context"
	"fmt"

	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
)

// Publisher emits domain events. Publishing is best effort: callers log
// failures and carry on, the state change itself is already persisted.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer messageProducer
	source   string
}

func NewKafkaPublisher(producer messageProducer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := kafka.NewMessage().
		WithKey(e.Key()).
		WithValue(e).
		WithHeader(kafka.HeaderEventID, e.ID).
		WithEventType(string(e.Type)).
		WithCorrelationID(e.Key()).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		Build()
	if err != nil {
		return fmt.Errorf("build %s event: %w", e.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// LogPublisher only logs events. It is used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Debug("Event not published, Kafka disabled",
		"event_id", e.ID,
		"event_type", e.Type,
		"request_id", e.RequestID,
		"booking_id", e.BookingID,
	)
	return nil
}
