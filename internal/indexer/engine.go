// Package indexer builds and incrementally updates the publication index.
// Build and Update are pure functions over a document sequence; Engine
// wraps them with the single-writer discipline, persistence through a
// segment.Store and atomic publication to readers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/tracing"
)

// Build modes, used in logs, metrics and index events.
const (
	ModeBuild  = "build"
	ModeUpdate = "update"
	ModeOpen   = "open"
)

// State is what readers see: a snapshot and exactly the documents it
// covers. Both are replaced together.
type State struct {
	Snapshot  *index.Snapshot
	Documents []ingestion.Document
}

// Publisher receives every newly published state, typically the query
// executor living in the same process.
type Publisher interface {
	Publish(snap *index.Snapshot, docs []ingestion.Document) error
}

// Notifier announces a published snapshot to other processes.
type Notifier interface {
	NotifyIndexed(ctx context.Context, ev Event) error
}

// Event describes a published snapshot.
type Event struct {
	Mode                  string    `json:"mode"`
	TotalDocuments        int       `json:"total_documents"`
	TotalTerms            int       `json:"total_terms"`
	AverageDocumentLength float64   `json:"average_document_length"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Option configures an Engine.
type Option func(*Engine)

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// Engine is the only mutating path over the index. At most one Build,
// Update or Open runs at a time; a second caller gets ErrBuildInProgress.
type Engine struct {
	src       source.Source
	store     segment.Store
	publisher Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger

	writeMu  sync.Mutex
	building atomic.Bool
	state    atomic.Pointer[State]
}

func NewEngine(src source.Source, store segment.Store, opts ...Option) *Engine {
	e := &Engine{
		src:    src,
		store:  store,
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the published state, or nil before the first build.
func (e *Engine) Current() *State {
	return e.state.Load()
}

// Building reports whether a build or update is running in this process.
func (e *Engine) Building() bool {
	return e.building.Load()
}

// Statistics describes the published snapshot.
func (e *Engine) Statistics() (index.Stats, error) {
	st := e.state.Load()
	if st == nil {
		return index.Stats{}, apperrors.ErrNotInitialized
	}
	return st.Snapshot.Statistics(), nil
}

// Build rebuilds the index from the full source.
func (e *Engine) Build(ctx context.Context) (*State, error) {
	return e.run(ctx, ModeBuild)
}

// Update indexes records appended to the source since the last publish.
// With nothing new it returns the current state untouched.
func (e *Engine) Update(ctx context.Context) (*State, error) {
	return e.run(ctx, ModeUpdate)
}

// Open publishes the persisted snapshot, if any. A store with no snapshot
// leaves the engine uninitialized without error.
func (e *Engine) Open(ctx context.Context) (*State, error) {
	return e.run(ctx, ModeOpen)
}

func (e *Engine) run(ctx context.Context, mode string) (*State, error) {
	if !e.writeMu.TryLock() {
		return nil, apperrors.ErrBuildInProgress
	}
	defer e.writeMu.Unlock()

	if locker, ok := e.store.(segment.Locker); ok {
		unlock, err := locker.TryLock()
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	e.building.Store(true)
	defer e.building.Store(false)

	ctx, span := tracing.Start(ctx, "index."+mode)
	start := time.Now()
	st, changed, err := e.produce(ctx, mode)
	elapsed := time.Since(start)
	span.End(err)
	span.Log(e.logger)
	switch {
	case err != nil:
		e.metrics.ObserveBuild(mode, "error", elapsed)
		e.logger.Error("index run failed", "mode", mode, "error", err, "duration", elapsed)
		return nil, err
	case !changed:
		e.metrics.ObserveBuild(mode, "noop", elapsed)
		e.logger.Info("index unchanged", "mode", mode, "duration", elapsed)
		return st, nil
	}

	if e.publisher != nil {
		if err := e.publisher.Publish(st.Snapshot, st.Documents); err != nil {
			e.metrics.ObserveBuild(mode, "error", elapsed)
			return nil, fmt.Errorf("publishing snapshot: %w", err)
		}
	}
	e.state.Store(st)

	stats := st.Snapshot.Statistics()
	e.metrics.ObserveBuild(mode, "ok", elapsed)
	e.metrics.SetIndexSize(stats.TotalDocuments, stats.TotalTerms)
	e.logger.Info("index published",
		"mode", mode,
		"docs", stats.TotalDocuments,
		"terms", stats.TotalTerms,
		"avg_doc_length", stats.AverageDocumentLength,
		"duration", elapsed,
	)

	if e.notifier != nil && mode != ModeOpen {
		ev := Event{
			Mode:                  mode,
			TotalDocuments:        stats.TotalDocuments,
			TotalTerms:            stats.TotalTerms,
			AverageDocumentLength: stats.AverageDocumentLength,
			UpdatedAt:             st.Snapshot.Meta.UpdatedAt,
		}
		if err := e.notifier.NotifyIndexed(ctx, ev); err != nil {
			e.logger.Warn("index event not delivered", "error", err)
		}
	}
	return st, nil
}

// produce computes the next state without publishing it. changed is false
// when the current state should stay as is.
func (e *Engine) produce(ctx context.Context, mode string) (*State, bool, error) {
	current := e.state.Load()

	var snap *index.Snapshot
	if mode == ModeOpen {
		_, span := tracing.Start(ctx, "load_snapshot")
		loaded, err := e.store.Load(ctx)
		span.End(err)
		if errors.Is(err, apperrors.ErrSnapshotNotFound) {
			e.logger.Info("no persisted snapshot, waiting for first build")
			return current, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("loading snapshot: %w", err)
		}
		snap = loaded
	}

	_, span := tracing.Start(ctx, "load_documents")
	docs, err := source.Documents(ctx, e.src)
	span.SetAttr("documents", len(docs))
	span.End(err)
	if err != nil {
		return nil, false, fmt.Errorf("loading documents: %w", err)
	}

	_, span = tracing.Start(ctx, "index_documents")
	switch mode {
	case ModeBuild:
		snap, err = Build(ctx, docs)
	case ModeUpdate:
		var prev *index.Snapshot
		if current != nil {
			prev = current.Snapshot
		}
		snap, err = Update(ctx, docs, prev)
		if err == nil && prev != nil && snap == prev {
			span.End(nil)
			return current, false, nil
		}
	}
	span.End(err)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", mode, err)
	}

	n := snap.Meta.TotalDocuments
	if len(docs) < n {
		return nil, false, fmt.Errorf("%w: snapshot covers %d documents, source has %d",
			apperrors.ErrInconsistentSnapshot, n, len(docs))
	}
	if mode != ModeOpen {
		_, span := tracing.Start(ctx, "save_snapshot")
		err := e.store.Save(ctx, snap)
		span.End(err)
		if err != nil {
			return nil, false, fmt.Errorf("saving snapshot: %w", err)
		}
	}
	return &State{Snapshot: snap, Documents: docs[:n:n]}, true, nil
}
