package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/app"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	embedIndexer := flag.Bool("indexer", true, "run builds in-process and serve POST /api/v1/index")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Indexer.Source,
		"store", cfg.Indexer.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Open(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("failed to open components", "error", err)
		os.Exit(1)
	}
	defer components.Close()
	m := components.Metrics

	exec := executor.New(m)
	var engine *indexer.Engine
	var runner handler.IndexRunner
	if *embedIndexer {
		engine = components.Engine(indexer.WithPublisher(exec))
		runner = engine
		if _, err := engine.Open(ctx); err != nil {
			slog.Error("initial snapshot load failed", "error", err)
		}
	} else if err := exec.Reload(ctx, components.Store, components.Source); err != nil {
		slog.Error("initial snapshot load failed", "error", err)
	}
	if !exec.Ready() {
		slog.Warn("no snapshot yet, searches return 503 until the first build")
	}

	var backend cache.Backend
	if components.Redis != nil {
		backend = cache.NewRedisBackend(components.Redis, cfg.Redis.CacheTTL)
		slog.Info("search cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	} else {
		lruBackend, err := cache.NewMemoryBackend(cfg.Search.CacheSize)
		if err != nil {
			slog.Error("failed to create cache", "error", err)
			os.Exit(1)
		}
		backend = lruBackend
		slog.Info("search cache enabled", "backend", "lru", "size", cfg.Search.CacheSize)
	}
	queryCache := cache.New(backend, m)

	var producer publisher.EventPublisher
	if cfg.Kafka.Enabled {
		recordProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RecordIngest)
		defer recordProducer.Close()
		producer = recordProducer

		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		reloader := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete,
			reloadOnIndexEvent(exec, components), kafka.WithGroup(group))
		go func() {
			if err := reloader.Start(ctx); err != nil {
				slog.Error("index event consumer error", "error", err)
			}
		}()
		slog.Info("reloading on index events", "topic", cfg.Kafka.Topics.IndexComplete)
	}
	ingestH := ingesthandler.New(publisher.New(producer, components.Source, m))

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, err := exec.Statistics()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", stats.TotalDocuments)}
	})
	if components.Redis != nil {
		checker.Register("redis", health.Ping(components.Redis.Ping, cfg.Indexer.Store != config.StoreRedis))
	}
	if components.Postgres != nil {
		checker.Register("postgres", health.Ping(components.Postgres.Ping, false))
	}

	h := handler.New(exec, queryCache, runner, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index", h.TriggerIndex)
	mux.HandleFunc("POST /api/v1/records", ingestH.Ingest)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.Server.CORSOrigins),
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	if engine != nil && cfg.Indexer.UpdateInterval > 0 {
		engine.StartScheduler(ctx, cfg.Indexer.UpdateInterval,
			resilience.RetryConfig{MaxAttempts: cfg.Indexer.RetryAttempts})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// reloadOnIndexEvent reloads the persisted snapshot whenever another
// process announces one.
func reloadOnIndexEvent(exec *executor.Executor, c *app.Components) kafka.MessageHandler {
	log := logger.WithComponent("index-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[indexer.Event](value)
		if err != nil {
			log.Error("failed to decode index event", "error", err)
			return nil
		}
		if err := exec.Reload(ctx, c.Store, c.Source); err != nil {
			return fmt.Errorf("reloading after %s event: %w", ev.Mode, err)
		}
		log.Info("snapshot reloaded", "mode", ev.Mode, "documents", ev.TotalDocuments)
		return nil
	}
}
