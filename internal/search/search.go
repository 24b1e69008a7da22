// Package search runs a free-text query over every searchable resource and
// explains, per resource, how the query matched.
package search

import (
	"context"
	"html"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/termgraph"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/tracing"
)

// Corpus is the view of the resource store a Searcher needs.
type Corpus interface {
	Searchable() iter.Seq[*resource.Resource]
	Get(id string) (*resource.Resource, error)
}

// LinkProvider builds page thumbnail and page links for a resource. Both
// return "" when the resource has none.
type LinkProvider interface {
	Thumbnail(res *resource.Resource, page int, small bool) string
	PageLink(res *resource.Resource, page int) string
}

// Context is one explanation of why a resource matched.
type Context struct {
	HTML      string `json:"html"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Link      string `json:"link,omitempty"`
}

// Result is a matched resource with its contexts.
type Result struct {
	Resource  *resource.Resource `json:"resource"`
	Contexts  []Context          `json:"context"`
	Thumbnail string             `json:"thumbnail,omitempty"`
}

// Diagnostic records a term whose references could not be followed. The term
// contributed no contexts; the rest of the search was unaffected.
type Diagnostic struct {
	ResourceID string `json:"resource"`
	Term       string `json:"term"`
	Error      string `json:"error"`
}

// Response is the outcome of one query.
type Response struct {
	Query       string        `json:"query,omitempty"`
	Results     []Result      `json:"results"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	Elapsed     time.Duration `json:"-"`
	// Partial is set when a page text fetch failed and at least one context
	// fell back to the term text. Such a response should not be cached.
	Partial bool `json:"-"`
}

// MatchedIDs lists the IDs of matched resources in result order.
func (r *Response) MatchedIDs() []string {
	ids := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		ids = append(ids, res.Resource.ID)
	}
	return ids
}

// Searcher is safe for concurrent use; it keeps no per-query state.
type Searcher struct {
	corpus   Corpus
	resolver *termgraph.Resolver
	links    LinkProvider
	logger   *slog.Logger
}

// New creates a Searcher. pages and links may be nil.
func New(corpus Corpus, pages termgraph.PageTextProvider, links LinkProvider) *Searcher {
	return &Searcher{
		corpus:   corpus,
		resolver: termgraph.NewResolver(corpus, pages),
		links:    links,
		logger:   slog.Default().With("component", "searcher"),
	}
}

// Search matches query against every searchable resource in store order.
// An empty query yields an empty response.
func (s *Searcher) Search(ctx context.Context, query string) *Response {
	start := time.Now()
	resp := &Response{Query: query, Results: []Result{}}
	if strings.TrimSpace(query) == "" {
		return resp
	}

	ctx, span := tracing.StartChildSpan(ctx, "search.scan")
	defer span.End()

	pattern := matcher.Compile(query)
	tokens := strings.Fields(query)
	scanned := 0
	for res := range s.corpus.Searchable() {
		scanned++
		contexts := s.matchResource(ctx, resp, pattern, tokens, res)
		if len(contexts) == 0 {
			continue
		}
		resp.Results = append(resp.Results, Result{
			Resource:  res,
			Contexts:  contexts,
			Thumbnail: s.thumbnail(res, 1),
		})
	}

	resp.Elapsed = time.Since(start)
	span.SetAttr("scanned", scanned)
	span.SetAttr("matched", len(resp.Results))

	logger.FromContext(ctx).Debug("search scanned corpus",
		"query", query,
		"scanned", scanned,
		"matched", len(resp.Results),
		"diagnostics", len(resp.Diagnostics),
		"latency_ms", resp.Elapsed.Milliseconds(),
	)
	return resp
}

func (s *Searcher) matchResource(
	ctx context.Context,
	resp *Response,
	pattern *matcher.Pattern,
	tokens []string,
	res *resource.Resource,
) []Context {
	var contexts []Context

	if slices.Contains(tokens, res.ID) {
		contexts = append(contexts, Context{HTML: html.EscapeString(res.ID)})
	}

	fields := make([]string, 0, 2+len(res.AltTitles))
	fields = append(fields, res.Title, res.Description)
	fields = append(fields, res.AltTitles...)
	for _, field := range fields {
		for snippet := range pattern.Find(field) {
			contexts = append(contexts, Context{HTML: snippet.HTML()})
		}
	}

	for i := range res.Terms {
		term := &res.Terms[i]
		paths, err := s.resolver.ResolvePattern(ctx, pattern, res, term)
		if err != nil {
			s.logger.Warn("term reference unresolvable",
				"resource", res.ID,
				"term", term.Text,
				"error", err,
			)
			resp.Diagnostics = append(resp.Diagnostics, Diagnostic{
				ResourceID: res.ID,
				Term:       term.Text,
				Error:      err.Error(),
			})
			continue
		}
		for _, path := range paths {
			if path.Matched().Unrefined {
				resp.Partial = true
			}
			c := Context{HTML: termgraph.Format(path)}
			if term.HasPage() {
				c.Thumbnail = s.thumbnail(res, *term.Page)
				c.Link = s.pageLink(res, *term.Page)
			}
			contexts = append(contexts, c)
		}
	}
	return contexts
}

func (s *Searcher) thumbnail(res *resource.Resource, page int) string {
	if s.links == nil {
		return ""
	}
	return s.links.Thumbnail(res, page, true)
}

func (s *Searcher) pageLink(res *resource.Resource, page int) string {
	if s.links == nil {
		return ""
	}
	return s.links.PageLink(res, page)
}
