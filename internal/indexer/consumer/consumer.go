// Package consumer reads publication records from the ingest topic and
// appends them to the record source. Appended records are indexed by the
// next scheduled update.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

// RecordConsumer wraps a Kafka consumer that feeds the record source.
type RecordConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *RecordConsumer {
	return &RecordConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "record-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (rc *RecordConsumer) Start(ctx context.Context) error {
	rc.logger.Info("record consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler appending every valid record to
// appender. Undecodable and invalid records are logged and skipped so they
// do not block the partition. A failing Append is retried per retry; when
// it still fails, or the source cannot accept appends at all, the handler
// halts the consumer so the record stays uncommitted.
func HandleMessage(appender source.Appender, retry resilience.RetryConfig, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "record-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		rec, err := kafka.DecodeJSON[ingestion.RawRecord](value)
		if err == nil && rec == nil {
			err = errors.New("record is null")
		}
		if err != nil {
			m.RecordIngested("invalid")
			logger.Error("failed to decode record",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := validator.ValidateRecord(rec); err != nil {
			m.RecordIngested("invalid")
			logger.Warn("dropping invalid record",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		err = resilience.Retry(ctx, "append-record", retry, func() error {
			err := appender.Append(ctx, rec)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			m.RecordIngested("error")
			err = fmt.Errorf("appending record %s: %w", key, err)
			if ctx.Err() != nil {
				return err
			}
			return kafka.Halt(err)
		}
		m.RecordIngested("stored")
		logger.Debug("record appended", "key", string(key))
		return nil
	}
}
