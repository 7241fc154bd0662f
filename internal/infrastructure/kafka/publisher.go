// Package kafka mirrors domain events to a Kafka topic so downstream
// consumers (notifications, analytics) can react without touching the store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pharmaracks/stockledger/internal/domain/event"
	"github.com/pharmaracks/stockledger/internal/observability"
)

// envelope is the wire form: the event name routes consumers, the payload is
// the event struct as-is.
type envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type Publisher struct {
	w   *kafka.Writer
	log observability.Logger
}

func NewPublisher(brokers []string, topic string, tel observability.Observability) *Publisher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		log: tel.Logger().With(observability.F("component", "kafka_publisher")),
	}
}

func (p *Publisher) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", e.EventName(), err)
	}
	value, err := json.Marshal(envelope{
		Event:      e.EventName(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.EventName()),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.EventName(), err)
	}
	p.log.Debug("event_published", observability.F("event", e.EventName()))
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
