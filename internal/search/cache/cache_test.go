package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string]string{}}
}

func (b *memBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	v, ok := b.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func response(query string) *search.Response {
	return &search.Response{
		Query: query,
		Results: []search.Result{{
			Resource: &resource.Resource{ID: "r1", Title: "Widget Policy"},
			Contexts: []search.Context{{HTML: "<b>Widget</b> Policy"}},
		}},
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemBackend(), "v1", time.Minute, nil)
	ctx := context.Background()
	var computed atomic.Int32
	compute := func() *search.Response {
		computed.Add(1)
		return response("widget")
	}

	resp, hit := c.GetOrCompute(ctx, "widget", compute)
	assert.False(t, hit)
	assert.Equal(t, []string{"r1"}, resp.MatchedIDs())

	resp, hit = c.GetOrCompute(ctx, "widget", compute)
	assert.True(t, hit)
	assert.Equal(t, "<b>Widget</b> Policy", resp.Results[0].Contexts[0].HTML)
	assert.Equal(t, "Widget Policy", resp.Results[0].Resource.Title)
	assert.Equal(t, int32(1), computed.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrCompute_WhitespaceIsPartOfKey(t *testing.T) {
	c := New(newMemBackend(), "v1", time.Minute, nil)
	ctx := context.Background()
	var computed atomic.Int32
	compute := func() *search.Response {
		computed.Add(1)
		return response("widget")
	}

	c.GetOrCompute(ctx, "widget", compute)
	_, hit := c.GetOrCompute(ctx, " widget", compute)
	assert.False(t, hit)
	assert.Equal(t, int32(2), computed.Load())
}

func TestGetOrCompute_PartialNotStored(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, "v1", time.Minute, nil)
	ctx := context.Background()
	compute := func() *search.Response {
		resp := response("widget")
		resp.Partial = true
		return resp
	}

	resp, hit := c.GetOrCompute(ctx, "widget", compute)
	assert.False(t, hit)
	assert.Equal(t, []string{"r1"}, resp.MatchedIDs())
	assert.Empty(t, backend.data)

	_, hit = c.GetOrCompute(ctx, "widget", compute)
	assert.False(t, hit)
}

func TestVersionIsolatesKeys(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	New(backend, "v1", time.Minute, nil).Set(ctx, "widget", response("widget"))

	_, ok := New(backend, "v2", time.Minute, nil).Get(ctx, "widget")
	assert.False(t, ok)
	_, ok = New(backend, "v1", time.Minute, nil).Get(ctx, "widget")
	assert.True(t, ok)
}

func TestBackendErrorsDegradeToCompute(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("connection refused")
	c := New(backend, "v1", time.Minute, nil)

	resp, hit := c.GetOrCompute(context.Background(), "widget", func() *search.Response {
		return response("widget")
	})
	assert.False(t, hit)
	require.NotNil(t, resp)
	assert.Len(t, resp.Results, 1)
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	c := New(backend, "v1", time.Minute, nil)
	c.Set(ctx, "a", response("a"))
	c.Set(ctx, "b", response("b"))
	backend.data["ckb:pagetext:abc"] = "kept"

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, map[string]string{"ckb:pagetext:abc": "kept"}, backend.data)
}
