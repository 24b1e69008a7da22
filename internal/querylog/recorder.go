package querylog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/metrics"
)

// Writer persists a batch of entries.
type Writer interface {
	Record(ctx context.Context, entries ...Entry) error
}

// Recorder takes entries off the request path and writes them in batches,
// when batchSize entries are buffered or every flushInterval. Entries beyond
// three batches of backlog are dropped.
type Recorder struct {
	writer        Writer
	metrics       *metrics.Metrics
	mu            sync.Mutex
	buffer        []Entry
	batchSize     int
	flushInterval time.Duration
	flushes       chan struct{}
	logger        *slog.Logger
	done          chan struct{}
}

func NewRecorder(writer Writer, m *metrics.Metrics, batchSize int, flushInterval time.Duration) *Recorder {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Recorder{
		writer:        writer,
		metrics:       m,
		buffer:        make([]Entry, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		flushes:       make(chan struct{}, 1),
		logger:        slog.Default().With("component", "query-log-recorder"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then makes a final flush.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.flush(ctx)
			case <-r.flushes:
				r.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				r.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	r.logger.Info("query log recorder started",
		"batch_size", r.batchSize,
		"flush_interval", r.flushInterval,
	)
}

// Track buffers e. It never blocks on the database.
func (r *Recorder) Track(e Entry) {
	r.mu.Lock()
	if len(r.buffer) >= r.batchSize*3 {
		r.mu.Unlock()
		r.dropped(1)
		return
	}
	r.buffer = append(r.buffer, e)
	shouldFlush := len(r.buffer) >= r.batchSize
	r.mu.Unlock()

	if shouldFlush {
		select {
		case r.flushes <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to finish. Cancel the context passed to
// Start first.
func (r *Recorder) Close() {
	<-r.done
}

func (r *Recorder) BufferLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.buffer
	r.buffer = make([]Entry, 0, r.batchSize)
	r.mu.Unlock()

	if err := r.writer.Record(ctx, batch...); err != nil {
		r.logger.Error("query log flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		r.mu.Lock()
		r.buffer = append(batch, r.buffer...)
		limit := r.batchSize * 3
		var overflow int
		if len(r.buffer) > limit {
			overflow = len(r.buffer) - limit
			r.buffer = r.buffer[:limit]
		}
		r.mu.Unlock()
		if overflow > 0 {
			r.logger.Warn("query log buffer overflow, entries dropped", "dropped", overflow)
			r.dropped(overflow)
		}
		return
	}

	r.logger.Debug("query log flushed", "entries", len(batch))
}

func (r *Recorder) dropped(n int) {
	if r.metrics != nil {
		r.metrics.QueryLogDroppedTotal.Add(float64(n))
	}
}
