// Package catalog lists the vocabulary and the roles of the corpus.
package catalog

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
)

type Corpus interface {
	Searchable() iter.Seq[*resource.Resource]
}

// TermUse is one occurrence of a term text in a resource.
type TermUse struct {
	Text     string `json:"text"`
	Document string `json:"document"`
}

// Vocabulary groups the terms of every searchable resource by exact text.
// Groups are sorted case-insensitively, then by exact text; uses within a
// group keep store order.
func Vocabulary(corpus Corpus) [][]TermUse {
	groups := make(map[string][]TermUse)
	var order []string
	for res := range corpus.Searchable() {
		for _, term := range res.Terms {
			if _, ok := groups[term.Text]; !ok {
				order = append(order, term.Text)
			}
			groups[term.Text] = append(groups[term.Text], TermUse{Text: term.Text, Document: res.ID})
		}
	}

	slices.SortFunc(order, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a), strings.ToLower(b)),
			cmp.Compare(a, b),
		)
	})
	out := make([][]TermUse, 0, len(order))
	for _, text := range order {
		out = append(out, groups[text])
	}
	return out
}

// Roles returns the role resources sorted by title, ignoring case.
func Roles(corpus Corpus) []*resource.Resource {
	roles := []*resource.Resource{}
	for res := range corpus.Searchable() {
		if res.Kind == resource.KindRole {
			roles = append(roles, res)
		}
	}
	slices.SortStableFunc(roles, func(a, b *resource.Resource) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)),
			cmp.Compare(a.Title, b.Title),
		)
	})
	return roles
}
