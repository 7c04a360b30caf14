// Package events announces completed ingestions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeSessionCreated = "session.created"
	DefaultTopic       = "blood-tests"
)

// SessionCreated is published once a session and its readings are committed.
type SessionCreated struct {
	Type       string    `json:"type"`
	SessionID  int       `json:"session_id"`
	UserID     int       `json:"user_id"`
	UserName   string    `json:"user_name"`
	TestDate   string    `json:"test_date"`
	TestCount  int       `json:"test_count"`
	SourceFile string    `json:"source_file"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishSessionCreated(ctx context.Context, evt SessionCreated) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSessionCreated(context.Context, SessionCreated) error { return nil }
func (Nop) Close() error { return nil }

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w      MessageWriter
	logger *slog.Logger
}

// NewKafkaPublisher writes to topic on brokers, balancing by least bytes.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return NewKafkaPublisherWithWriter(w, logger)
}

func NewKafkaPublisherWithWriter(w MessageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{w: w, logger: logger}
}

func (p *KafkaPublisher) PublishSessionCreated(ctx context.Context, evt SessionCreated) error {
	if evt.Type == "" {
		evt.Type = TypeSessionCreated
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// keyed by user so one user's sessions stay ordered within a partition
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(evt.UserID)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("events.publish_failed", "type", evt.Type, "session_id", evt.SessionID, "error", err)
		return err
	}
	p.logger.Debug("events.published", "type", evt.Type, "session_id", evt.SessionID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
