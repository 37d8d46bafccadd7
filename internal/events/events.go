// Package events implements the index-updated notification of
// SPEC_FULL.md §4.12: published once per successful flush so downstream
// consumers (cache warmers, read replicas) can react without polling the
// store. Enriched from the pack's github.com/segmentio/kafka-go
// dependency; the default publisher is a no-op.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// FlushEvent describes one completed flush.
type FlushEvent struct {
	TokenIDs  []int64   `json:"token_ids"`
	FlushedAt time.Time `json:"flushed_at"`
}

// Publisher is notified after a flush commits.
type Publisher interface {
	PublishFlush(ctx context.Context, ev FlushEvent) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishFlush(context.Context, FlushEvent) error { return nil }

// KafkaPublisher publishes flush events as JSON to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a Publisher that produces to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) PublishFlush(ctx context.Context, ev FlushEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

// Close releases the underlying Kafka writer's connections.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
