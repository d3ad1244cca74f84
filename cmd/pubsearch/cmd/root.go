// Package cmd provides the pubsearch CLI commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/app"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pubsearch",
		Short: "Index and search academic publication records",
		Long: `pubsearch maintains a BM25 inverted index over a publication corpus
and answers free-text, author and year queries against it.

Records come from a JSON or JSON Lines file or from PostgreSQL. The
index snapshot is stored on disk or in Redis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newBuildCmd(opts, false))
	cmd.AddCommand(newBuildCmd(opts, true))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newScheduleCmd(opts))

	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// open assembles components. Short-lived commands skip metrics.
func (o *rootOptions) open(ctx context.Context, reg prometheus.Registerer) (*app.Components, error) {
	return app.Open(ctx, o.cfg, reg)
}
