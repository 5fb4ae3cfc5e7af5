package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/pkg/config"
)

// TopicCheckoutTransitions is the default topic for step changes
const TopicCheckoutTransitions = "checkout.transitions"

// TransitionEvent is published whenever a purchase session changes step
type TransitionEvent struct {
	EventType       string    `json:"event_type"`
	TransitionID    string    `json:"transition_id"`
	SessionID       string    `json:"session_id"`
	EventID         int       `json:"event_id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Reason          string    `json:"reason,omitempty"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ReservationID   *int      `json:"reservation_id,omitempty"`
	PurchaseGroupID *string   `json:"purchase_group_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *TransitionEvent) Key() string {
	return e.SessionID
}

// NewTransitionEvent converts a checkout transition to its wire form
func NewTransitionEvent(t checkout.Transition) *TransitionEvent {
	return &TransitionEvent{
		EventType:       "checkout.transition",
		TransitionID:    t.ID,
		SessionID:       t.SessionID,
		EventID:         t.EventID,
		From:            string(t.From),
		To:              string(t.To),
		Reason:          t.Reason,
		ErrorCode:       string(t.ErrorCode),
		ReservationID:   t.ReservationID,
		PurchaseGroupID: t.PurchaseGroupID,
		Timestamp:       t.Timestamp,
	}
}

// producer is the subset of *kgo.Client used for publishing
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher publishes transitions to Kafka
type KafkaPublisher struct {
	client producer
	topic  string
}

// NewKafkaClient builds a franz-go client for the transition topic
func NewKafkaClient(cfg config.KafkaConfig) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	topic := cfg.TransitionTopic
	if topic == "" {
		topic = TopicCheckoutTransitions
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// NewKafkaPublisher publishes to topic through client
func NewKafkaPublisher(client producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = TopicCheckoutTransitions
	}
	return &KafkaPublisher{client: client, topic: topic}
}

// Publish sends one transition, keyed by session so a session's events stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, t checkout.Transition) error {
	event := NewTransitionEvent(t)
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transition event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Timestamp: event.Timestamp,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish transition %s: %w", t.ID, err)
	}
	return nil
}

// Close flushes and closes the client
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NoopPublisher drops transitions; used when Kafka is disabled
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(ctx context.Context, t checkout.Transition) error {
	return nil
}

// Close does nothing
func (NoopPublisher) Close() {}
