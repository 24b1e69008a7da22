package termgraph

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
)

// PageTextProvider returns the full text of one page of a resource. An empty
// string with a nil error means no text is available.
type PageTextProvider interface {
	PageText(ctx context.Context, res *resource.Resource, page int) (string, error)
}

// ResourceLookup is the subset of resource.Store the resolver needs.
type ResourceLookup interface {
	Get(id string) (*resource.Resource, error)
}

// ResolutionError reports a term reference that cannot be followed. It wraps
// ErrResourceNotFound or ErrTermNotFound.
type ResolutionError struct {
	ResourceID string
	Term       string
	Relation   Relation
	TargetID   string
	TargetTerm string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("term reference in resource <%s> from %q (%s) to %q in resource <%s> is invalid: %v",
		e.ResourceID, e.Term, e.Relation, e.TargetTerm, e.TargetID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err came from a broken term reference.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// Resolver walks term references looking for a term whose text matches the
// query. It holds no per-query state and is safe for concurrent use.
type Resolver struct {
	resources ResourceLookup
	pages     PageTextProvider
	logger    *slog.Logger
}

// NewResolver creates a Resolver. pages may be nil, in which case snippets are
// never refined with page text.
func NewResolver(resources ResourceLookup, pages PageTextProvider) *Resolver {
	return &Resolver{
		resources: resources,
		pages:     pages,
		logger:    slog.Default().With("component", "term-resolver"),
	}
}

// node identifies a term in the graph.
type node struct {
	resourceID string
	text       string
}

// visited is an immutable set of nodes. with returns an extended copy, so each
// recursive branch carries only the nodes on its own path.
type visited struct {
	node   node
	parent *visited
}

func (v *visited) contains(n node) bool {
	for cur := v; cur != nil; cur = cur.parent {
		if cur.node == n {
			return true
		}
	}
	return false
}

func (v *visited) with(n node) *visited {
	return &visited{node: n, parent: v}
}

// Resolve returns every path from term (declared by res) to a term matching
// query. A term that matches directly yields exactly one single-hop path and
// is not expanded further.
func (r *Resolver) Resolve(ctx context.Context, query string, res *resource.Resource, term *resource.Term) ([]MatchPath, error) {
	return r.ResolvePattern(ctx, matcher.Compile(query), res, term)
}

// ResolvePattern is Resolve with an already compiled query. A nil pattern
// matches nothing.
func (r *Resolver) ResolvePattern(ctx context.Context, pattern *matcher.Pattern, res *resource.Resource, term *resource.Term) ([]MatchPath, error) {
	if pattern == nil {
		return nil, nil
	}
	return r.resolve(ctx, pattern, res, term, RelationNone, nil)
}

func (r *Resolver) resolve(
	ctx context.Context,
	pattern *matcher.Pattern,
	res *resource.Resource,
	term *resource.Term,
	incoming Relation,
	seen *visited,
) ([]MatchPath, error) {
	here := node{resourceID: res.ID, text: term.Text}
	if seen.contains(here) {
		return nil, nil
	}
	seen = seen.with(here)

	if snippet, ok := pattern.First(term.Text); ok {
		refined, fetched := r.refine(ctx, res, term, snippet)
		return []MatchPath{{{Label: refined.HTML(), Resource: res, Relation: incoming, Unrefined: !fetched}}}, nil
	}

	var paths []MatchPath
	for _, relation := range relationOrder {
		ref := reference(term, relation)
		if ref == nil {
			continue
		}
		targetRes, targetTerm, err := r.follow(res, term, relation, ref)
		if err != nil {
			return nil, err
		}
		sub, err := r.resolve(ctx, pattern, targetRes, targetTerm, relation, seen)
		if err != nil {
			return nil, err
		}
		head := Hop{Label: html.EscapeString(term.Text), Resource: res, Relation: incoming}
		for _, tail := range sub {
			path := make(MatchPath, 0, len(tail)+1)
			path = append(path, head)
			path = append(path, tail...)
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func reference(term *resource.Term, relation Relation) *resource.TermReference {
	switch relation {
	case RelationDefinedBy:
		return term.DefinedBy
	case RelationSameAs:
		return term.SameAs
	default:
		return nil
	}
}

func (r *Resolver) follow(
	res *resource.Resource,
	term *resource.Term,
	relation Relation,
	ref *resource.TermReference,
) (*resource.Resource, *resource.Term, error) {
	targetID, targetText := ref.Target(res, term)
	fail := func(err error) error {
		return &ResolutionError{
			ResourceID: res.ID,
			Term:       term.Text,
			Relation:   relation,
			TargetID:   targetID,
			TargetTerm: targetText,
			Err:        err,
		}
	}

	targetRes := res
	if targetID != res.ID {
		found, err := r.resources.Get(targetID)
		if err != nil {
			return nil, nil, fail(err)
		}
		targetRes = found
	}
	targetTerm, ok := targetRes.FindTerm(targetText)
	if !ok {
		return nil, nil, fail(kberrors.ErrTermNotFound)
	}
	return targetRes, targetTerm, nil
}

// refine swaps the snippet for one cut from the term's page, where the term
// is searched for by its own text. Any failure keeps the original snippet;
// the flag is false only when the page text could not be fetched.
func (r *Resolver) refine(ctx context.Context, res *resource.Resource, term *resource.Term, snippet matcher.Snippet) (matcher.Snippet, bool) {
	if r.pages == nil || !term.HasPage() {
		return snippet, true
	}
	text, err := r.pages.PageText(ctx, res, *term.Page)
	if err != nil {
		r.logger.Debug("page text unavailable",
			"resource", res.ID,
			"page", *term.Page,
			"error", err,
		)
		return snippet, false
	}
	if text == "" {
		return snippet, true
	}
	if refined, found := matcher.First(term.Text, text); found {
		return refined, true
	}
	return snippet, true
}
