package pagetext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/resilience"
)

const maxPageBytes = 4 << 20

var errNoText = errors.New("no page text")

// TextCache stores fetched page text keyed by source URL. An empty string is
// a valid cached value meaning "the page has no text".
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, text string)
}

// Provider fetches page text over HTTP. Fetches are rate limited, retried,
// guarded by a circuit breaker per host and deduplicated across concurrent
// callers.
type Provider struct {
	cfg     config.PageTextConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   TextCache
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

func WithCache(cache TextCache) Option {
	return func(p *Provider) { p.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

func NewProvider(cfg config.PageTextConfig, opts ...Option) *Provider {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	p := &Provider{
		cfg:      cfg,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   slog.Default().With("component", "page-text"),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SourceURL returns where the text of page lives, or "" when the resource has
// no page text. A Markdown document is a single page: its raw source.
func SourceURL(res *resource.Resource, page int) string {
	if id, ok := ParseDocumentCloud(res.URL); ok {
		return id.TextURL(page)
	}
	if res.Format == "markdown" && res.AuthoritativeURL != "" {
		return res.AuthoritativeURL
	}
	return ""
}

// PageText returns the text of page, or "" when there is none.
func (p *Provider) PageText(ctx context.Context, res *resource.Resource, page int) (string, error) {
	src := SourceURL(res, page)
	if src == "" {
		return "", nil
	}
	if p.cache != nil {
		if text, ok := p.cache.Get(ctx, src); ok {
			p.cacheResult(true)
			return text, nil
		}
		p.cacheResult(false)
	}

	v, err, shared := p.group.Do(src, func() (any, error) {
		text, err := p.fetch(ctx, src)
		if err != nil {
			return "", err
		}
		if p.cache != nil {
			p.cache.Set(ctx, src, text)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		p.logger.Debug("page text fetch shared", "url", src)
	}
	return v.(string), nil
}

func (p *Provider) fetch(ctx context.Context, src string) (string, error) {
	breaker, err := p.breaker(src)
	if err != nil {
		return "", err
	}

	var text string
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  p.cfg.RetryAttempts + 1,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
	err = resilience.Retry(ctx, "page-text", retryCfg, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		err := breaker.Execute(func() error {
			body, err := resilience.WithTimeout(ctx, p.cfg.Timeout, "page-text fetch", func(ctx context.Context) (string, error) {
				return p.get(ctx, src)
			})
			if err == nil {
				text = body
			}
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		p.fetchResult("ok")
		return text, nil
	case errors.Is(err, errNoText):
		p.fetchResult("not_found")
		return "", nil
	default:
		p.fetchResult("error")
		return "", fmt.Errorf("fetching page text %s: %w", src, err)
	}
}

func (p *Provider) get(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", resilience.Permanent(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", resilience.Permanent(errNoText)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", resilience.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func (p *Provider) breaker(src string) (*resilience.CircuitBreaker, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing page text url: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[u.Host]; ok {
		return cb, nil
	}
	cb := resilience.NewCircuitBreaker("page-text:"+u.Host, resilience.CircuitBreakerConfig{
		FailureThreshold: p.cfg.BreakerThreshold,
		ResetTimeout:     p.cfg.BreakerReset,
		OnStateChange: func(name string, _, to resilience.State) {
			if p.metrics != nil {
				p.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	p.breakers[u.Host] = cb
	return cb, nil
}

// OpenBreakers lists the breakers currently rejecting fetches.
func (p *Provider) OpenBreakers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var open []string
	for _, cb := range p.breakers {
		if cb.GetState() == resilience.StateOpen {
			open = append(open, cb.Name())
		}
	}
	slices.Sort(open)
	return open
}

func (p *Provider) fetchResult(outcome string) {
	if p.metrics != nil {
		p.metrics.PageTextFetchesTotal.WithLabelValues(outcome).Inc()
	}
}

func (p *Provider) cacheResult(hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.CacheHitsTotal.WithLabelValues("page_text").Inc()
	} else {
		p.metrics.CacheMissesTotal.WithLabelValues("page_text").Inc()
	}
}
