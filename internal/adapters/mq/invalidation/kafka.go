package invalidation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per invalidated topic to a Kafka topic.
// Messages are keyed by user id so a user's signals stay ordered.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds the synchronous writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaPublisher creates a publisher on w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

type message struct {
	Topic      string `json:"topic"`
	UserID     string `json:"user_id"`
	SnapshotID string `json:"snapshot_id"`
	At         string `json:"at"`
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, sig Signal) error {
	msgs := make([]kafka.Message, 0, len(sig.Topics))
	for _, topic := range sig.Topics {
		b, err := json.Marshal(message{
			Topic:      topic,
			UserID:     sig.UserID,
			SnapshotID: sig.SnapshotID,
			At:         sig.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
		if err != nil {
			return fmt.Errorf("encode invalidation %s: %w", topic, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(sig.UserID),
			Value:   b,
			Time:    sig.At,
			Headers: []kafka.Header{{Key: "topic", Value: []byte(topic)}},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish invalidation for %s: %w", sig.UserID, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
