// Package analytics publishes one event per search to Kafka and aggregates
// the event stream into usage statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one served search.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Matched     []string  `json:"matched"`
	ResultCount int       `json:"result_count"`
	Diagnostics int       `json:"diagnostics"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	RemoteAddr  string    `json:"remote_addr"`
}

// NewSearchEvent fills in Type from the result count and stamps the time.
func NewSearchEvent(query string, matched []string, diagnostics int, latency time.Duration, cacheHit bool) SearchEvent {
	typ := EventSearch
	if len(matched) == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{
		Type:        typ,
		Query:       query,
		Matched:     matched,
		ResultCount: len(matched),
		Diagnostics: diagnostics,
		LatencyMs:   latency.Milliseconds(),
		CacheHit:    cacheHit,
		Timestamp:   time.Now().UTC(),
	}
}
