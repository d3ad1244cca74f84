package segment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/redis"
)

// BlobClient is the subset of the Redis client the store needs.
type BlobClient interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisStore keeps the encoded snapshot under a single key, so searchers
// that share no filesystem can load it. A single SET replaces it
// atomically.
type RedisStore struct {
	client      BlobClient
	key         string
	compression Compression
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewRedisStore(client BlobClient, key string, c Compression, m *metrics.Metrics) *RedisStore {
	return &RedisStore{
		client:      client,
		key:         key,
		compression: c,
		metrics:     m,
		logger:      slog.Default().With("component", "redis-store", "key", key),
	}
}

func (s *RedisStore) Save(ctx context.Context, snap *index.Snapshot) error {
	data, err := EncodeWith(snap, s.compression)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("storing snapshot in redis: %w", err)
	}
	s.metrics.SetSnapshotBytes(int64(len(data)))
	s.logger.Info("snapshot saved", "terms", len(snap.Index), "docs", snap.Meta.TotalDocuments, "bytes", len(data))
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*index.Snapshot, error) {
	data, err := s.client.GetBytes(ctx, s.key)
	if redis.IsNilError(err) {
		return nil, apperrors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot from redis: %w", err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading redis key %s: %w", s.key, err)
	}
	return snap, nil
}
