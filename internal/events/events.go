// Package events publishes session lifecycle notifications for other
// services. Publishing is best-effort: callers log failures and move on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeSessionCreated = "session_created"
	TypeSessionRevoked = "session_revoked"
)

// Event never carries secrets or hashes.
type Event struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	SessionID uint      `json:"session_id"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewPublisher returns a Kafka-backed publisher, or Nop when no brokers are set.
func NewPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 || topic == "" {
		return Nop{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Keyed by user so one user's events stay ordered within a partition.
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.UserID), 10)),
		Value: data,
		Time:  e.At,
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
