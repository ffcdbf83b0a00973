package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderStatusChanged  = "order.status_changed"
	TypeInventoryDivergence = "inventory.divergence"
)

// Event is a domain fact published after a state change.
type Event interface {
	EventType() string
	// Key selects the partition; events of one order share a key.
	Key() string
}

type OrderStatusChanged struct {
	OrderID    string    `json:"orderId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (OrderStatusChanged) EventType() string { return TypeOrderStatusChanged }
func (e OrderStatusChanged) Key() string { return e.OrderID }

// InventoryDivergence reports a shipped order whose stock decrement failed.
type InventoryDivergence struct {
	OrderID    string    `json:"orderId"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (InventoryDivergence) EventType() string { return TypeInventoryDivergence }
func (e InventoryDivergence) Key() string { return e.OrderID }

type envelope struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// Encode renders the wire form of an event.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(envelope{Type: e.EventType(), Payload: e})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Kafka publishes JSON events to a single topic.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key()),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.EventType())},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.EventType(), err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Log writes events to the structured log instead of a broker.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, e Event) error {
	l.logger.InfoContext(ctx, "event", "type", e.EventType(), "key", e.Key(), "payload", e)
	return nil
}

func (l *Log) Close() error { return nil }
