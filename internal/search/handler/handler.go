// Package handler serves the knowledge base query API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/querylog"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search/cache"
	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/tracing"
)

const maxQueryRunes = 256

type Searcher interface {
	Search(ctx context.Context, query string) *search.Response
}

type QueryRecorder interface {
	Track(e querylog.Entry)
}

type EventTracker interface {
	Track(e analytics.SearchEvent)
}

type StatsSource interface {
	Stats(ctx context.Context) (*querylog.Stats, error)
}

type Handler struct {
	searcher Searcher
	corpus   catalog.Corpus
	cache    *cache.QueryCache
	recorder QueryRecorder
	events   EventTracker
	stats    StatsSource
	metrics  *metrics.Metrics
	tracing  bool
	logger   *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithQueryLog records every non-empty search and serves /api/querystats
// from the same log.
func WithQueryLog(recorder QueryRecorder, stats StatsSource) Option {
	return func(h *Handler) {
		h.recorder = recorder
		h.stats = stats
	}
}

func WithEvents(events EventTracker) Option {
	return func(h *Handler) { h.events = events }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracing logs a span tree for every search.
func WithTracing(enabled bool) Option {
	return func(h *Handler) { h.tracing = enabled }
}

func New(searcher Searcher, corpus catalog.Corpus, opts ...Option) *Handler {
	h := &Handler{
		searcher: searcher,
		corpus:   corpus,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds the query API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.Search)
	mux.HandleFunc("GET /api/vocab", h.Vocabulary)
	mux.HandleFunc("GET /api/roles", h.Roles)
	mux.HandleFunc("GET /api/querystats", h.QueryStats)
	mux.HandleFunc("GET /api/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	// Surrounding whitespace is part of the pattern, so only the emptiness
	// check ignores it.
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.countQuery("empty")
		h.writeJSON(w, http.StatusOK, &search.Response{Results: []search.Result{}})
		return
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		h.writeErr(w, kberrors.Newf(kberrors.ErrInvalidInput, http.StatusBadRequest,
			"query longer than %d characters", maxQueryRunes))
		return
	}

	var root *tracing.Span
	if h.tracing {
		ctx, root = tracing.StartSpan(ctx, "http.search", logger.RequestID(ctx))
	}

	compute := func() *search.Response {
		resp := h.searcher.Search(ctx, query)
		if h.metrics != nil {
			h.metrics.ResolutionErrorsTotal.Add(float64(len(resp.Diagnostics)))
		}
		return resp
	}
	var (
		resp     *search.Response
		cacheHit bool
	)
	cacheStatus := "disabled"
	if h.cache != nil {
		resp, cacheHit = h.cache.GetOrCompute(ctx, query, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		resp = compute()
	}
	elapsed := time.Since(start)
	matched := resp.MatchedIDs()

	if root != nil {
		root.SetAttr("query", query)
		root.SetAttr("cache_status", cacheStatus)
		root.End()
		root.Log(log)
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(matched)))
	}
	if len(matched) == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("matched")
	}

	client := middleware.ClientAddr(r)
	if h.recorder != nil {
		h.recorder.Track(querylog.Entry{
			Time:       start.UTC(),
			RemoteAddr: client,
			Query:      query,
			Matched:    matched,
			Duration:   elapsed,
		})
	}
	if h.events != nil {
		event := analytics.NewSearchEvent(query, matched, len(resp.Diagnostics), elapsed, cacheHit)
		event.RequestID = logger.RequestID(ctx)
		event.RemoteAddr = client
		h.events.Track(event)
	}

	log.Info("search completed",
		"query", query,
		"matched", len(matched),
		"diagnostics", len(resp.Diagnostics),
		"cache_status", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Vocabulary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"terms": catalog.Vocabulary(h.corpus)})
}

func (h *Handler) Roles(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"roles": catalog.Roles(h.corpus)})
}

func (h *Handler) QueryStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeErr(w, kberrors.New(kberrors.ErrUnavailable, http.StatusServiceUnavailable, "query log is disabled"))
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("query stats failed", "error", err)
		h.writeErr(w, fmt.Errorf("%w: %w", kberrors.ErrUnavailable, err))
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
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
		h.writeErr(w, kberrors.New(kberrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeErr(w, fmt.Errorf("%w: %w", kberrors.ErrUnavailable, err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func (h *Handler) countQuery(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeErr maps err onto a status. Messages of internal errors are not
// exposed to the client.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := kberrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	if appErr, ok := err.(*kberrors.AppError); ok {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
