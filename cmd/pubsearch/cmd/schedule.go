package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/consumer"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		now      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run periodic index updates until interrupted",
		Long: `Restore the persisted snapshot and run an incremental update every
interval. With Kafka enabled, records from the ingest topic are appended
to the source in the meantime and every published snapshot is announced
on the index-complete topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg
			if interval <= 0 {
				interval = cfg.Indexer.UpdateInterval
			}

			c, err := opts.open(ctx, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer c.Close()

			if cfg.Metrics.Enabled {
				srv, err := metrics.Listen(fmt.Sprintf(":%d", cfg.Metrics.Port), metrics.Handler())
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			engine := c.Engine()
			if _, err := engine.Open(ctx); err != nil {
				return err
			}
			retry := resilience.RetryConfig{MaxAttempts: cfg.Indexer.RetryAttempts}
			if now {
				if _, err := engine.Update(ctx); err != nil && !errors.Is(err, apperrors.ErrBuildInProgress) {
					return err
				}
			}

			var consumerDone chan struct{}
			if cfg.Kafka.Enabled {
				kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RecordIngest,
					consumer.HandleMessage(c.Source, retry, c.Metrics), kafka.FromBeginning())
				rc := consumer.New(kc)
				consumerDone = make(chan struct{})
				go func() {
					defer close(consumerDone)
					if err := rc.Start(ctx); err != nil {
						slog.Error("record consumer stopped, ingest resumes from the uncommitted record on restart", "error", err)
					}
				}()
			}

			done := engine.StartScheduler(ctx, interval, retry)
			slog.Info("scheduler running", "interval", interval, "kafka", cfg.Kafka.Enabled)
			<-done
			if consumerDone != nil {
				<-consumerDone
			}
			slog.Info("scheduler stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Update interval (default from config)")
	cmd.Flags().BoolVar(&now, "now", false, "Run one update before waiting for the first tick")
	return cmd
}
