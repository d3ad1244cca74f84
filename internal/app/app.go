// Package app assembles the record source, the snapshot store and their
// clients from configuration. Both binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/redis"
)

// RecordSource is what both source kinds implement.
type RecordSource interface {
	source.Source
	source.Appender
}

type Components struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Source   RecordSource
	Store    segment.Store
	Redis    *pkgredis.Client
	Postgres *postgres.Client
	closers  []func() error
	logger   *slog.Logger
}

// Open connects everything cfg asks for. reg may be nil to skip metrics.
// Redis is optional for caching and required only for the redis store.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Components, error) {
	c := &Components{
		Config: cfg,
		logger: slog.Default().With("component", "app"),
	}
	if reg != nil {
		c.Metrics = metrics.New(reg)
	}

	if cfg.Redis.Enabled || cfg.Indexer.Store == config.StoreRedis {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		switch {
		case err == nil:
			c.Redis = client
			c.closers = append(c.closers, client.Close)
		case cfg.Indexer.Store == config.StoreRedis:
			return nil, fmt.Errorf("connecting redis snapshot store: %w", err)
		default:
			c.logger.Warn("redis unavailable, falling back to in-process cache", "error", err)
		}
	}

	if err := c.openSource(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openStore(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) openSource(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Indexer.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting postgres source: %w", err)
		}
		c.Postgres = db
		c.closers = append(c.closers, db.Close)
		src := source.NewPostgresSource(db)
		if err := src.EnsureSchema(ctx); err != nil {
			return err
		}
		c.Source = src
	default:
		c.Source = source.NewFileSource(cfg.Indexer.DocumentsPath)
	}
	return nil
}

func (c *Components) openStore() error {
	cfg := c.Config
	compression, err := segment.ParseCompression(cfg.Indexer.Compression)
	if err != nil {
		return err
	}
	switch cfg.Indexer.Store {
	case config.StoreRedis:
		c.Store = segment.NewRedisStore(c.Redis, cfg.Redis.SnapshotKey, compression, c.Metrics)
	default:
		store, err := segment.NewFileStore(cfg.Indexer.DataDir, compression, c.Metrics)
		if err != nil {
			return err
		}
		c.Store = store
	}
	return nil
}

// Engine returns an indexer engine over the configured source and store.
// With Kafka enabled it announces every snapshot on the index-complete
// topic.
func (c *Components) Engine(opts ...indexer.Option) *indexer.Engine {
	opts = append([]indexer.Option{indexer.WithMetrics(c.Metrics)}, opts...)
	if c.Config.Kafka.Enabled {
		producer := kafka.NewProducer(c.Config.Kafka, c.Config.Kafka.Topics.IndexComplete)
		c.closers = append(c.closers, producer.Close)
		opts = append(opts, indexer.WithNotifier(indexer.NewKafkaNotifier(producer)))
	}
	return indexer.NewEngine(c.Source, c.Store, opts...)
}

// Close releases every connection in reverse order of opening.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
