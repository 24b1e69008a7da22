// Package health reports whether the knowledge base can answer queries.
//
// Components are either required (the corpus, the Kafka consumer of the
// analytics service) or optional (Redis, the query log database, page-text
// sources). A required component that is down fails readiness; an optional
// one only degrades the report.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const defaultCheckTimeout = 2 * time.Second

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type component struct {
	check    Check
	optional bool
}

type Checker struct {
	mu         sync.RWMutex
	components map[string]component
	timeout    time.Duration
	logger     *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]component),
		timeout:    defaultCheckTimeout,
		logger:     slog.Default().With("component", "health"),
	}
}

// Register adds a component the server cannot run without.
func (c *Checker) Register(name string, check Check) {
	c.add(name, component{check: check})
}

// RegisterOptional adds a component the server can run without. A down
// result is reported as degraded.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.add(name, component{check: check, optional: true})
}

func (c *Checker) add(name string, comp component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = comp
}

// Ping adapts a connectivity probe. detail is reported while the component
// is up.
func Ping(ping func(ctx context.Context) error, detail string) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp, Message: detail}
	}
}

// Run executes every check concurrently, each bounded by the checker's
// timeout. The overall status is the worst component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	components := maps.Clone(c.components)
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(components)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, comp := range components {
		wg.Go(func() {
			result := c.probe(ctx, comp)
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	for name, result := range report.Components {
		switch result.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
		if result.Status != StatusUp {
			c.logger.Debug("component not healthy", "name", name, "status", result.Status, "message", result.Message)
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, comp component) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result := call(ctx, comp.check)
	result.Latency = time.Since(start).Round(time.Millisecond).String()
	if comp.optional {
		result.Optional = true
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
	}
	return result
}

func call(ctx context.Context, check Check) (result ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			result = ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("check panicked: %v", r)}
		}
	}()
	return check(ctx)
}

// LiveHandler answers liveness probes. It never runs the checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a required component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
