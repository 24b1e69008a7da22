package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
)

// benchCorpus builds n policy documents whose terms are defined in a chain of
// authoritative documents, so every search walks cross-document references.
func benchCorpus(b *testing.B, n int) *resource.Store {
	b.Helper()
	resources := make([]*resource.Resource, 0, 2*n)
	for i := range n {
		resources = append(resources,
			&resource.Resource{
				ID:    fmt.Sprintf("policy-%d", i),
				Kind:  resource.KindPolicyDocument,
				Title: fmt.Sprintf("Policy %d", i),
				Terms: []resource.Term{{
					Text:      "ISSO",
					DefinedBy: &resource.TermReference{Document: fmt.Sprintf("auth-%d", i), Term: "Information System Security Officer"},
				}, {
					Text: fmt.Sprintf("audit log %d", i),
				}},
			},
			&resource.Resource{
				ID:    fmt.Sprintf("auth-%d", i),
				Kind:  resource.KindAuthoritativeDocument,
				Title: fmt.Sprintf("Authority %d", i),
				Terms: []resource.Term{{Text: "Information System Security Officer"}},
			},
		)
	}
	store, err := resource.NewStore(resources)
	if err != nil {
		b.Fatal(err)
	}
	return store
}

func BenchmarkSearch(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("docs_%d", 2*n), func(b *testing.B) {
			s := New(benchCorpus(b, n), nil, nil)
			ctx := context.Background()
			b.ReportAllocs()
			for b.Loop() {
				_ = s.Search(ctx, "security officer")
			}
		})
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	s := New(benchCorpus(b, 100), nil, nil)
	ctx := context.Background()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.Search(ctx, "audit")
		}
	})
}
