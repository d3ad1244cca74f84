// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Publication records arrive on the ingest topic as JSON
// objects; the indexer announces every published snapshot on the
// index-complete topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error leaves the offset uncommitted; an error wrapping ErrHalt also stops
// the consumer so later commits cannot move the group offset past it.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ErrHalt marks handler errors after which consumption must stop.
var ErrHalt = errors.New("consumer halted")

// Halt wraps err so Consumer.Start returns instead of moving on to the
// next message. A restarted consumer resumes at the failed message.
func Halt(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrHalt, err)
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// ConsumerOption tweaks the reader configuration.
type ConsumerOption func(*kafka.ReaderConfig)

// FromBeginning starts a fresh consumer group at the oldest offset, which
// the record ingester needs so no publication is skipped.
func FromBeginning() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

// WithGroup overrides the consumer group. Every searcher replica uses its
// own group so each one sees every index-complete event.
func WithGroup(group string) ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.GroupID = group }
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return &Consumer{
		reader:  kafka.NewReader(rc),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", rc.GroupID),
		handler: handler,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			if errors.Is(err, ErrHalt) {
				c.logger.Error("consumer halted, offset left uncommitted",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				return errors.Join(err, c.reader.Close())
			}
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
