// Package publisher accepts publication records from outside the crawler.
// With Kafka enabled a record is queued on the ingest topic and appended by
// the ingest consumer; otherwise it is appended to the source directly.
// Either way it becomes searchable after the next index update.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
)

const (
	StatusQueued = "QUEUED"
	StatusStored = "STORED"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Receipt acknowledges an accepted record.
type Receipt struct {
	RecordID   string    `json:"record_id"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type Publisher struct {
	producer EventPublisher
	appender source.Appender
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Publisher. A nil producer makes Ingest append to appender
// synchronously.
func New(producer EventPublisher, appender source.Appender, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		appender: appender,
		metrics:  m,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest validates rec and either queues or stores it. Validation failures
// are returned as *validator.ValidationError.
func (p *Publisher) Ingest(ctx context.Context, rec ingestion.RawRecord) (*Receipt, error) {
	if err := validator.ValidateRecord(rec); err != nil {
		p.metrics.RecordIngested("invalid")
		return nil, err
	}
	receipt := &Receipt{
		RecordID:   uuid.NewString(),
		AcceptedAt: time.Now().UTC(),
	}
	if p.producer != nil {
		if err := p.producer.Publish(ctx, kafka.Event{Key: receipt.RecordID, Value: rec}); err != nil {
			p.metrics.RecordIngested("error")
			return nil, fmt.Errorf("queueing record %s: %w", receipt.RecordID, err)
		}
		receipt.Status = StatusQueued
		p.metrics.RecordIngested("queued")
		p.logger.Debug("record queued", "record_id", receipt.RecordID)
		return receipt, nil
	}
	if err := p.appender.Append(ctx, rec); err != nil {
		p.metrics.RecordIngested("error")
		return nil, fmt.Errorf("storing record %s: %w", receipt.RecordID, err)
	}
	receipt.Status = StatusStored
	p.metrics.RecordIngested("stored")
	p.logger.Debug("record stored", "record_id", receipt.RecordID)
	return receipt, nil
}
