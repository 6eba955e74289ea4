package repository

import (
	"context"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	pkgkafka "Sentinel/pkg/kafka"
)

// KafkaPublisher emits signal events to a Kafka topic, keyed by symbol
// so per-symbol ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates the Kafka event backend.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSignals(ctx context.Context, events []models.SignalEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Code), Value: e}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher backs the "none" event backend.
type NopPublisher struct{}

func NewNopPublisher() repository.EventPublisher { return NopPublisher{} }

func (NopPublisher) PublishSignals(context.Context, []models.SignalEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
