package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/logger"
)

type SearchExecutor interface {
	Search(ctx context.Context, c executor.Criteria, limit int) ([]executor.Result, error)
	Corpus() (executor.CorpusStats, error)
	Generation() uint64
	SnapshotID() string
}

// IndexRunner is the optional in-process indexer behind POST /api/v1/index.
type IndexRunner interface {
	Build(ctx context.Context) (*indexer.State, error)
	Update(ctx context.Context) (*indexer.State, error)
	Building() bool
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	indexer      IndexRunner
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the search API. queryCache and idx may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, idx IndexRunner, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		indexer:      idx,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

type searchHit struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     *int     `json:"year"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords"`
	URL      string   `json:"url"`
	Score    float64  `json:"score"`
}

type searchResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Results []searchHit `json:"results"`
}

// Search serves GET /api/v1/search?query=&author=&year=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	criteria := executor.Criteria{
		Text:   params.Get("query"),
		Author: params.Get("author"),
	}
	if yearStr := params.Get("year"); yearStr != "" {
		year, err := executor.ParseYear(yearStr)
		if err != nil {
			h.writeSearchError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		criteria.Year = &year
	}
	if strings.TrimSpace(criteria.Text) == "" && strings.TrimSpace(criteria.Author) == "" && criteria.Year == nil {
		h.writeSearchError(w, http.StatusBadRequest, "provide at least one of query, author or year")
		return
	}

	limit := h.defaultLimit
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeSearchError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	var (
		results  []executor.Result
		err      error
		cacheHit bool
	)
	compute := func() ([]executor.Result, error) {
		return h.executor.Search(ctx, criteria, limit)
	}
	if h.cache != nil {
		key := cache.Key{Snapshot: h.executor.SnapshotID(), Criteria: criteria, Limit: limit}
		results, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, apperrors.ErrNotInitialized) {
			h.writeSearchError(w, status, "search engine not initialized, build the index first")
			return
		}
		log.Error("search execution failed", "criteria", criteria, "error", err)
		h.writeSearchError(w, status, "search failed")
		return
	}

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = toHit(res)
	}
	log.Info("search completed",
		"query", criteria.Text,
		"author", criteria.Author,
		"returned", len(hits),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, searchResponse{
		Success: true,
		Message: fmt.Sprintf("Found %d results", len(hits)),
		Results: hits,
	})
}

func toHit(res executor.Result) searchHit {
	authors, keywords := res.Authors, res.Keywords
	if authors == nil {
		authors = []string{}
	}
	if keywords == nil {
		keywords = []string{}
	}
	return searchHit{
		ID:       res.DocID,
		Title:    ingestion.DisplayTitle(ingestion.Document{Title: res.Title}),
		Authors:  authors,
		Year:     res.Year,
		Abstract: res.Abstract,
		Keywords: keywords,
		URL:      res.URL,
		Score:    res.Score,
	}
}

type statsResponse struct {
	executor.CorpusStats
	Indexing   bool   `json:"indexing"`
	Generation uint64 `json:"generation"`
	SnapshotID string `json:"snapshot_id"`
}

// Stats serves GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	corpus, err := h.executor.Corpus()
	if err != nil {
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": statsResponse{
			CorpusStats: corpus,
			Indexing:    h.indexer != nil && h.indexer.Building(),
			Generation:  h.executor.Generation(),
			SnapshotID:  h.executor.SnapshotID(),
		},
	})
}

// TriggerIndex serves POST /api/v1/index?mode=build|update. The run
// continues after the response; a run already in progress is a 409.
func (h *Handler) TriggerIndex(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "indexing is not enabled on this instance"})
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = indexer.ModeUpdate
	}
	run := h.indexer.Update
	switch mode {
	case indexer.ModeUpdate:
	case indexer.ModeBuild:
		run = h.indexer.Build
	default:
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "mode must be build or update"})
		return
	}
	if h.indexer.Building() {
		h.writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": apperrors.ErrBuildInProgress.Error()})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	log := logger.FromContext(ctx)
	go func() {
		if _, err := run(ctx); err != nil {
			log.Error("triggered index run failed", "mode", mode, "error", err)
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": fmt.Sprintf("index %s started", mode)})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeSearchError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, searchResponse{Success: false, Message: message, Results: []searchHit{}})
}
