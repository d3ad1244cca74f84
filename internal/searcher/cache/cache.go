// Package cache memoises query results per published snapshot. Keys carry
// the snapshot's content digest, so a newly published snapshot never serves
// results computed against another one, even through a backend shared by
// several replicas.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

const keyPrefix = "search:"

// Backend stores encoded result lists.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) (int64, error)
}

type QueryCache struct {
	backend Backend
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies one query against one snapshot. Text is
// compared after whitespace folding and lowercasing, author after
// lowercasing.
type Key struct {
	Snapshot string
	Criteria executor.Criteria
	Limit    int
}

func (k Key) String() string {
	year := "-"
	if k.Criteria.Year != nil {
		year = fmt.Sprintf("%d", *k.Criteria.Year)
	}
	raw := fmt.Sprintf("snapshot=%s|text=%s|author=%s|year=%s|limit=%d",
		k.Snapshot,
		strings.Join(strings.Fields(strings.ToLower(k.Criteria.Text)), " "),
		strings.ToLower(strings.TrimSpace(k.Criteria.Author)),
		year,
		k.Limit,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key Key) ([]executor.Result, bool) {
	k := key.String()
	data, ok, err := c.backend.Get(ctx, k)
	if err != nil {
		c.logger.Error("cache get failed", "key", k, "error", err)
	}
	if !ok || err != nil {
		c.miss()
		return nil, false
	}
	var results []executor.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "key", k)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, results []executor.Result) {
	k := key.String()
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, data); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached results for key or runs computeFn once
// for all concurrent callers asking for the same key. Errors are not
// cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() ([]executor.Result, error),
) ([]executor.Result, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]executor.Result), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.Purge(ctx)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

// MemoryBackend keeps entries in a process-local LRU.
type MemoryBackend struct {
	lru *lru.Cache[string, []byte]
}

func NewMemoryBackend(size int) (*MemoryBackend, error) {
	l, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &MemoryBackend{lru: l}, nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	b.lru.Add(key, value)
	return nil
}

func (b *MemoryBackend) Purge(ctx context.Context) (int64, error) {
	n := b.lru.Len()
	b.lru.Purge()
	return int64(n), nil
}

// RedisBackend shares entries between searcher replicas. Calls go through
// a circuit breaker and a per-call timeout.
type RedisBackend struct {
	client  *pkgredis.Client
	ttl     time.Duration
	timeout time.Duration
	breaker *resilience.Breaker
}

func NewRedisBackend(client *pkgredis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client:  client,
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
		breaker: resilience.NewBreaker("redis-cache", resilience.BreakerConfig{}),
	}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var found bool
	err := b.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		v, err := b.client.GetBytes(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	return data, found, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.client.Set(ctx, key, value, b.ttl)
	})
}

func (b *RedisBackend) Purge(ctx context.Context) (int64, error) {
	return b.client.FlushByPattern(ctx, keyPrefix+"*")
}
