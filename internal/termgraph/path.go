// Package termgraph resolves a query against the graph of vocabulary terms.
// Terms point at each other through "defined-by" and "same-as" references,
// possibly across resources; a MatchPath records the chain of hops from the
// term a resource declares to the term whose text actually matched.
package termgraph

import (
	"html"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
)

// Relation is the kind of edge followed to reach a hop.
type Relation string

const (
	RelationNone      Relation = ""
	RelationDefinedBy Relation = "defined-by"
	RelationSameAs    Relation = "same-as"
)

// relationOrder is the order in which a term's references are expanded.
var relationOrder = []Relation{RelationDefinedBy, RelationSameAs}

// Phrase is the wording used when explaining the relation.
func (r Relation) Phrase() string {
	if r == RelationDefinedBy {
		return "is defined by"
	}
	return "has same meaning as"
}

// Hop is one node of a match path. Label is already markup-safe: the escaped
// term text for intermediate hops, a rendered snippet for the final one.
type Hop struct {
	Label    string
	Resource *resource.Resource
	Relation Relation
	// Unrefined is set on the final hop when its page text could not be
	// fetched and Label falls back to the term text.
	Unrefined bool
}

// MatchPath lists hops from the anchoring term (first) to the matching term
// (last). Each hop's Relation describes the edge from the previous hop; the
// first hop's Relation is RelationNone.
type MatchPath []Hop

// Matched returns the hop whose text satisfied the query.
func (p MatchPath) Matched() Hop {
	return p[len(p)-1]
}

// Format renders the path as a single markup-safe explanation, e.g.
//
//	ISSO <span class="from-cited-document">term is defined by term
//	“Information System <b>Security Officer</b>” in NIST 800-37</span>
//
// The resource of a hop is named once the path first leaves the anchoring
// resource, and for every hop after that, even one that returns to it.
func Format(path MatchPath) string {
	if len(path) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(path[0].Label)
	if len(path) == 1 {
		return b.String()
	}

	base := path[0].Resource
	b.WriteString(` <span class="from-cited-document">`)
	for i, hop := range path[1:] {
		if i == 0 {
			b.WriteString("term ")
		} else {
			b.WriteString(", which ")
		}
		b.WriteString(html.EscapeString(hop.Relation.Phrase() + " term “"))
		b.WriteString(hop.Label)
		b.WriteString(html.EscapeString("”"))

		if base == nil || hop.Resource.ID != base.ID {
			b.WriteString(" in ")
			b.WriteString(html.EscapeString(hop.Resource.Label()))
			base = nil
		}
	}
	b.WriteString("</span>")
	return b.String()
}
