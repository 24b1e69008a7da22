package pagetext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/resilience"
)

const dcURL = "https://www.documentcloud.org/documents/2932-nist-sp-800-53.html"

func TestParseDocumentCloud(t *testing.T) {
	id, ok := ParseDocumentCloud(dcURL)
	require.True(t, ok)
	assert.Equal(t, DocumentCloudID{Number: "2932", Slug: "nist-sp-800-53"}, id)

	for _, bad := range []string{
		"",
		"https://example.com/documents/2932-nist.html",
		"https://www.documentcloud.org/documents/2932-nist-sp-800-53.html#p3",
		"https://www.documentcloud.org/documents/abc-nist.html",
	} {
		_, ok := ParseDocumentCloud(bad)
		assert.False(t, ok, bad)
	}
}

func TestLinks(t *testing.T) {
	res := &resource.Resource{ID: "nist", URL: dcURL}
	links := Links{}

	assert.Equal(t,
		"https://assets.documentcloud.org/documents/2932/pages/nist-sp-800-53-p4-small.gif",
		links.Thumbnail(res, 4, true))
	assert.Equal(t,
		"https://assets.documentcloud.org/documents/2932/pages/nist-sp-800-53-p1-normal.gif",
		links.Thumbnail(res, 1, false))
	assert.Equal(t,
		"https://www.documentcloud.org/documents/2932-nist-sp-800-53.html#document/p4",
		links.PageLink(res, 4))

	local := &resource.Resource{ID: "local", URL: "https://example.com/policy.pdf"}
	assert.Empty(t, links.Thumbnail(local, 1, true))
	assert.Empty(t, links.PageLink(local, 1))
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t,
		"https://www.documentcloud.org/documents/2932/pages/nist-sp-800-53-p7.txt",
		SourceURL(&resource.Resource{URL: dcURL}, 7))
	assert.Equal(t, "https://example.com/p.md",
		SourceURL(&resource.Resource{Format: "markdown", AuthoritativeURL: "https://example.com/p.md"}, 3))
	assert.Empty(t, SourceURL(&resource.Resource{Format: "markdown"}, 1))
	assert.Empty(t, SourceURL(&resource.Resource{URL: "https://example.com/x.pdf"}, 1))
}

// redirect sends every request to the test server, keeping the path.
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return srv, &http.Client{Transport: redirect{target: target}}
}

func testConfig() config.PageTextConfig {
	return config.PageTextConfig{
		Enabled:          true,
		Timeout:          time.Second,
		RetryAttempts:    2,
		BreakerThreshold: 10,
		BreakerReset:     time.Minute,
	}
}

func TestProvider_DocumentCloudPage(t *testing.T) {
	var path string
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte("AC-2 Account Management"))
	})
	p := NewProvider(testConfig(), WithHTTPClient(client))

	text, err := p.PageText(context.Background(), &resource.Resource{URL: dcURL}, 12)
	require.NoError(t, err)
	assert.Equal(t, "AC-2 Account Management", text)
	assert.Equal(t, "/documents/2932/pages/nist-sp-800-53-p12.txt", path)
}

func TestProvider_MarkdownDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Policy\n\nThe ISSO reviews logs."))
	}))
	defer srv.Close()
	p := NewProvider(testConfig())

	res := &resource.Resource{Format: "markdown", AuthoritativeURL: srv.URL + "/policy.md"}
	text, err := p.PageText(context.Background(), res, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "ISSO reviews logs")
}

func TestProvider_NoSource(t *testing.T) {
	p := NewProvider(testConfig())
	text, err := p.PageText(context.Background(), &resource.Resource{ID: "role"}, 1)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestProvider_NotFoundIsNoText(t *testing.T) {
	var calls atomic.Int32
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})
	p := NewProvider(testConfig(), WithHTTPClient(client))

	text, err := p.PageText(context.Background(), &resource.Resource{URL: dcURL}, 1)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	})
	p := NewProvider(testConfig(), WithHTTPClient(client))

	text, err := p.PageText(context.Background(), &resource.Resource{URL: dcURL}, 1)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProvider_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	cfg := testConfig()
	cfg.RetryAttempts = 0
	cfg.BreakerThreshold = 2
	p := NewProvider(cfg, WithHTTPClient(client))
	res := &resource.Resource{URL: dcURL}
	assert.Empty(t, p.OpenBreakers())

	for range 2 {
		_, err := p.PageText(context.Background(), res, 1)
		require.Error(t, err)
	}
	_, err := p.PageText(context.Background(), res, 1)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"page-text:www.documentcloud.org"}, p.OpenBreakers())
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *memCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(_ context.Context, key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = text
}

func TestProvider_UsesCache(t *testing.T) {
	var calls atomic.Int32
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("page body"))
	})
	cache := &memCache{data: map[string]string{}}
	p := NewProvider(testConfig(), WithHTTPClient(client), WithCache(cache))
	res := &resource.Resource{URL: dcURL}

	for range 3 {
		text, err := p.PageText(context.Background(), res, 2)
		require.NoError(t, err)
		assert.Equal(t, "page body", text)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "page body", cache.data[SourceURL(res, 2)])
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("https://example.com/a")
	assert.Equal(t, a, cacheKey("https://example.com/a"))
	assert.NotEqual(t, a, cacheKey("https://example.com/b"))
	assert.Regexp(t, `^ckb:pagetext:[0-9a-f]{32}$`, a)
}
