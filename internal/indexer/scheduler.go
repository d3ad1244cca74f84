package indexer

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

// StartScheduler runs Update every interval until ctx ends. A failing
// source is retried with backoff per tick; a run already in progress is
// skipped. The previous snapshot stays published whatever happens.
func (e *Engine) StartScheduler(ctx context.Context, interval time.Duration, retry resilience.RetryConfig) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	e.logger.Info("update scheduler started", "interval", interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("update scheduler stopping")
				return
			case <-ticker.C:
				e.scheduledUpdate(ctx, retry)
			}
		}
	}()
	return done
}

func (e *Engine) scheduledUpdate(ctx context.Context, retry resilience.RetryConfig) {
	err := resilience.Retry(ctx, "scheduled-update", retry, func() error {
		_, err := e.Update(ctx)
		if errors.Is(err, apperrors.ErrBuildInProgress) || errors.Is(err, apperrors.ErrInconsistentSnapshot) {
			return resilience.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrBuildInProgress):
		e.logger.Info("scheduled update skipped, build in progress")
	case ctx.Err() != nil:
	default:
		e.logger.Error("scheduled update failed", "error", err)
	}
}
