// Package events publishes a Kafka message for every document the pipeline
// creates, so downstream consumers can react to new articles and bars.
package events

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
)

// RecordIngested is the message payload, keyed by Collection/Key so that
// every event for one document lands on the same partition.
type RecordIngested struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Document   record.Document `json:"document"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// Publisher is the part of *kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier implements ingestion.Notifier.
type KafkaNotifier struct {
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewKafkaNotifier returns a notifier publishing through p. m may be nil.
func NewKafkaNotifier(p Publisher, m *metrics.Metrics) *KafkaNotifier {
	return &KafkaNotifier{publisher: p, metrics: m, now: time.Now}
}

func (n *KafkaNotifier) RecordIngested(ctx context.Context, collection, key string, doc record.Document) error {
	err := n.publisher.Publish(ctx, kafka.Event{
		Key: collection + "/" + key,
		Value: RecordIngested{
			Collection: collection,
			Key:        key,
			Document:   doc,
			IngestedAt: n.now().UTC(),
		},
	})
	if n.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		n.metrics.EventsPublishedTotal.WithLabelValues(status).Inc()
	}
	return err
}
