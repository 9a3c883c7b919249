package notify

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"paper-trader/internal/config"
)

// MessageWriter is the subset of *kafka.Writer the Kafka sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as a JSON message keyed by portfolio id,
// so one portfolio's executions stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaSink creates a sink that writes to cfg.Topic on cfg.Brokers.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaSinkWithWriter(writer, cfg.Topic)
}

// NewKafkaSinkWithWriter creates a sink over an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

// Name returns the name of the sink.
func (k *KafkaSink) Name() string {
	return "kafka"
}

// Notify publishes the event.
func (k *KafkaSink) Notify(ctx context.Context, e Event) error {
	value, err := NewPayload(e).Marshal()
	if err != nil {
		return fmt.Errorf("marshaling kafka payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.PortfolioID),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "execution_id", Value: []byte(e.Result.ID)},
			{Key: "status", Value: []byte(e.Result.Status)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
