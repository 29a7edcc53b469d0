package repository

import (
	"context"

	"RiskLab/internal/domain/models"
	pkgkafka "RiskLab/pkg/kafka"
)

// runPublisher is the producer surface the run publisher needs.
type runPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// KafkaRunPublisher announces catalog records on a topic keyed by series id.
type KafkaRunPublisher struct {
	producer runPublisher
	topic    string
}

// NewKafkaRunPublisher creates a publisher writing to topic.
func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, rec models.RunRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.SeriesID), rec)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
