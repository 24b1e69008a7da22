package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/analytics", h.Stats)
	mux.HandleFunc("GET /api/analytics/zero-results", h.ZeroResults)
}

// Stats serves the current aggregate. ?top=N trims the ranked lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := topParam(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	stats := h.aggregator.Stats()
	stats.TopQueries = truncate(stats.TopQueries, n)
	stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, n)
	stats.TopDocuments = truncate(stats.TopDocuments, n)
	h.writeJSON(w, http.StatusOK, stats)
}

// ZeroResults lists the queries that matched nothing, which are the gaps in
// the vocabulary worth filling first.
func (h *Handler) ZeroResults(w http.ResponseWriter, r *http.Request) {
	n, err := topParam(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	stats := h.aggregator.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"zero_result_count": stats.ZeroResultCount,
		"queries":           truncate(stats.ZeroResultQueries, n),
	})
}

func topParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return topCount, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > topCount {
		return 0, kberrors.Newf(kberrors.ErrInvalidInput, http.StatusBadRequest, "top must be between 1 and %d", topCount)
	}
	return n, nil
}

func truncate(counts []QueryCount, n int) []QueryCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	message := err.Error()
	if appErr, ok := err.(*kberrors.AppError); ok {
		message = appErr.Message
	}
	h.writeJSON(w, kberrors.HTTPStatusCode(err), map[string]string{"error": message})
}
