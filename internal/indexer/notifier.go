package indexer

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier sends index events to the index-complete topic so search
// replicas reload.
type KafkaNotifier struct {
	producer EventPublisher
}

func NewKafkaNotifier(p EventPublisher) *KafkaNotifier {
	return &KafkaNotifier{producer: p}
}

func (n *KafkaNotifier) NotifyIndexed(ctx context.Context, ev Event) error {
	return n.producer.Publish(ctx, kafka.Event{Key: "index", Value: ev})
}
