// Package executor answers publication queries against the currently
// published index snapshot: BM25 free text, author substring, exact year
// and their AND-combination.
package executor

import (
	"cmp"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
)

// DefaultLimit applies when a caller passes limit <= 0.
const DefaultLimit = 10

// Query kinds, used as the metrics label.
const (
	KindText     = "text"
	KindAuthor   = "author"
	KindYear     = "year"
	KindCombined = "combined"
)

// Result is one hit with the canonical document fields. Score is the BM25
// score for text queries and 1.0 otherwise.
type Result struct {
	DocID    int      `json:"doc_id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     *int     `json:"year"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords"`
	URL      string   `json:"url"`
	Score    float64  `json:"score"`
}

// Criteria is a combined query. Empty Text, empty Author and nil Year mean
// the criterion is not supplied.
type Criteria struct {
	Text   string
	Author string
	Year   *int
}

func (c Criteria) hasText() bool   { return strings.TrimSpace(c.Text) != "" }
func (c Criteria) hasAuthor() bool { return strings.TrimSpace(c.Author) != "" }

type state struct {
	snap       *index.Snapshot
	docs       []ingestion.Document
	generation uint64
	id         string
}

type Executor struct {
	state      atomic.Pointer[state]
	generation atomic.Uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New returns an executor with nothing published. Every query fails with
// ErrNotInitialized until Publish or Reload succeeds.
func New(m *metrics.Metrics) *Executor {
	return &Executor{
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Publish swaps in a snapshot and the documents it covers. Documents past
// the snapshot's corpus size are not visible to queries.
func (e *Executor) Publish(snap *index.Snapshot, docs []ingestion.Document) error {
	if snap == nil {
		return fmt.Errorf("publishing snapshot: %w", apperrors.ErrNotInitialized)
	}
	n := snap.Meta.TotalDocuments
	if len(docs) < n {
		return fmt.Errorf("publishing snapshot of %d documents with %d records: %w",
			n, len(docs), apperrors.ErrInconsistentSnapshot)
	}
	docs = docs[:n:n]
	id, err := snapshotID(snap, docs)
	if err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	gen := e.generation.Add(1)
	e.state.Store(&state{snap: snap, docs: docs, generation: gen, id: id})
	e.metrics.SetIndexSize(n, len(snap.Index))
	e.logger.Info("snapshot published",
		"generation", gen,
		"snapshot_id", id,
		"documents", n,
		"terms", len(snap.Index),
	)
	return nil
}

// Reload loads the persisted snapshot and the record sequence and publishes
// them. A failed reload keeps the current state.
func (e *Executor) Reload(ctx context.Context, store segment.Store, src source.Source) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	docs, err := source.Documents(ctx, src)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	return e.Publish(snap, docs)
}

// Ready reports whether a snapshot is published.
func (e *Executor) Ready() bool {
	return e.state.Load() != nil
}

// Generation counts successful Publish calls in this process. It is 0
// before the first one.
func (e *Executor) Generation() uint64 {
	if st := e.state.Load(); st != nil {
		return st.generation
	}
	return 0
}

// SnapshotID is a content digest of the published snapshot and the
// documents it covers. Processes publishing the same data agree on it. It
// is empty before the first Publish.
func (e *Executor) SnapshotID() string {
	if st := e.state.Load(); st != nil {
		return st.id
	}
	return ""
}

func snapshotID(snap *index.Snapshot, docs []ingestion.Document) (string, error) {
	fp, err := segment.Fingerprint(snap)
	if err != nil {
		return "", fmt.Errorf("fingerprinting snapshot: %w", err)
	}
	h := blake3.New()
	h.Write(fp[:])
	if err := json.NewEncoder(h).Encode(docs); err != nil {
		return "", fmt.Errorf("fingerprinting documents: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// Statistics describes the published snapshot.
func (e *Executor) Statistics() (index.Stats, error) {
	st, err := e.current()
	if err != nil {
		return index.Stats{}, err
	}
	return st.snap.Statistics(), nil
}

func (e *Executor) current() (*state, error) {
	st := e.state.Load()
	if st == nil {
		return nil, apperrors.ErrNotInitialized
	}
	return st, nil
}

// SearchText ranks documents against query with BM25. A query with no
// indexable terms yields an empty list.
func (e *Executor) SearchText(ctx context.Context, query string, limit int) ([]Result, error) {
	return e.observe(KindText, func(st *state) []Result {
		return st.text(query, normalizeLimit(limit))
	})
}

// SearchByAuthor returns documents with an author containing namePart,
// case-insensitively, newest first. Documents without a year come last.
func (e *Executor) SearchByAuthor(ctx context.Context, namePart string, limit int) ([]Result, error) {
	return e.observe(KindAuthor, func(st *state) []Result {
		return truncate(st.author(namePart), normalizeLimit(limit))
	})
}

// SearchByYear returns documents published in year, in corpus order.
func (e *Executor) SearchByYear(ctx context.Context, year int, limit int) ([]Result, error) {
	return e.observe(KindYear, func(st *state) []Result {
		return truncate(st.year(year), normalizeLimit(limit))
	})
}

// Search runs the highest-priority supplied criterion (text, then author,
// then year) and keeps the candidates that satisfy every other supplied
// criterion. The limit applies after filtering.
func (e *Executor) Search(ctx context.Context, c Criteria, limit int) ([]Result, error) {
	if !c.hasText() && !c.hasAuthor() && c.Year == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"at least one of text, author or year is required")
	}
	return e.observe(kindOf(c), func(st *state) []Result {
		var candidates []Result
		switch {
		case c.hasText():
			candidates = st.text(c.Text, 0)
		case c.hasAuthor():
			candidates = st.author(c.Author)
		default:
			candidates = st.year(*c.Year)
		}
		filtered := candidates[:0]
		for _, r := range candidates {
			doc := st.docs[r.DocID]
			if c.hasAuthor() && !doc.HasAuthor(c.Author) {
				continue
			}
			if c.Year != nil && !doc.InYear(*c.Year) {
				continue
			}
			filtered = append(filtered, r)
		}
		return truncate(filtered, normalizeLimit(limit))
	})
}

func (e *Executor) observe(kind string, run func(st *state) []Result) ([]Result, error) {
	start := time.Now()
	st, err := e.current()
	if err != nil {
		e.metrics.ObserveSearch(kind, "not_ready", 0, time.Since(start))
		return nil, err
	}
	results := run(st)
	e.metrics.ObserveSearch(kind, "ok", len(results), time.Since(start))
	return results, nil
}

func (st *state) text(query string, limit int) []Result {
	terms := tokenizer.Normalize(query)
	if len(terms) == 0 {
		return []Result{}
	}
	ranked := ranker.Rank(st.snap, terms, limit)
	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		if r.DocID < 0 || r.DocID >= len(st.docs) {
			continue
		}
		results = append(results, toResult(st.docs[r.DocID], r.Score))
	}
	return results
}

func (st *state) author(namePart string) []Result {
	results := make([]Result, 0)
	for _, doc := range st.docs {
		if doc.HasAuthor(namePart) {
			results = append(results, toResult(doc, 1.0))
		}
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Year == nil && b.Year == nil:
			return 0
		case a.Year == nil:
			return 1
		case b.Year == nil:
			return -1
		default:
			return cmp.Compare(*b.Year, *a.Year)
		}
	})
	return results
}

func (st *state) year(year int) []Result {
	results := make([]Result, 0)
	for _, doc := range st.docs {
		if doc.InYear(year) {
			results = append(results, toResult(doc, 1.0))
		}
	}
	return results
}

func toResult(doc ingestion.Document, score float64) Result {
	return Result{
		DocID:    doc.ID,
		Title:    doc.Title,
		Authors:  doc.Authors,
		Year:     doc.Year,
		Abstract: doc.Abstract,
		Keywords: doc.Keywords,
		URL:      doc.URL,
		Score:    score,
	}
}

func kindOf(c Criteria) string {
	n := 0
	kind := KindYear
	if c.Year != nil {
		n++
	}
	if c.hasAuthor() {
		n++
		kind = KindAuthor
	}
	if c.hasText() {
		n++
		kind = KindText
	}
	if n > 1 {
		return KindCombined
	}
	return kind
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func truncate(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// ParseYear parses a year filter given as text.
func ParseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, apperrors.Newf(apperrors.ErrInvalidYearFormat, http.StatusBadRequest, "year %q: %v", s, err)
	}
	return year, nil
}
