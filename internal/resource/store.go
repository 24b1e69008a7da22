package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"

	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
)

// Store maps resource IDs to records. It is built once and never mutated, so
// concurrent readers need no locking.
type Store struct {
	byID    map[string]*Resource
	order   []*Resource
	version string
}

// NewStore indexes resources in the given order. Every record must carry a
// unique, non-empty ID and every term a non-empty text.
func NewStore(resources []*Resource) (*Store, error) {
	s := &Store{
		byID:  make(map[string]*Resource, len(resources)),
		order: make([]*Resource, 0, len(resources)),
	}
	h := sha256.New()
	for i, res := range resources {
		if err := validateRecord(res); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := s.byID[res.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", kberrors.ErrInvalidRecord, res.ID)
		}
		s.byID[res.ID] = res
		s.order = append(s.order, res)

		data, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", res.ID, err)
		}
		h.Write(data)
	}
	s.version = hex.EncodeToString(h.Sum(nil))[:16]
	return s, nil
}

func validateRecord(res *Resource) error {
	if res == nil {
		return fmt.Errorf("%w: nil record", kberrors.ErrInvalidRecord)
	}
	if res.ID == "" {
		return fmt.Errorf("%w: missing id", kberrors.ErrInvalidRecord)
	}
	for i, term := range res.Terms {
		if term.Text == "" {
			return fmt.Errorf("%w: resource %s term %d has no text", kberrors.ErrInvalidRecord, res.ID, i)
		}
	}
	return nil
}

// Get returns the resource with the given ID or ErrResourceNotFound.
func (s *Store) Get(id string) (*Resource, error) {
	res, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", kberrors.ErrResourceNotFound, id)
	}
	return res, nil
}

// All yields every resource in load order.
func (s *Store) All() iter.Seq[*Resource] {
	return func(yield func(*Resource) bool) {
		for _, res := range s.order {
			if !yield(res) {
				return
			}
		}
	}
}

// Searchable yields the documents and roles, in load order.
func (s *Store) Searchable() iter.Seq[*Resource] {
	return func(yield func(*Resource) bool) {
		for _, res := range s.order {
			if !res.Kind.Searchable() {
				continue
			}
			if !yield(res) {
				return
			}
		}
	}
}

// Len returns the number of loaded resources.
func (s *Store) Len() int {
	return len(s.order)
}

// CountByKind counts the loaded resources of each kind.
func (s *Store) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, res := range s.order {
		counts[res.Kind]++
	}
	return counts
}

// Version is a fingerprint of the loaded records. Two stores built from the
// same records in the same order share a version.
func (s *Store) Version() string {
	return s.version
}

// CheckReferences reports every term reference whose target resource or term
// does not exist. Dangling references are not load errors; they surface at
// query time for the resource that holds them.
func (s *Store) CheckReferences() []error {
	var problems []error
	for _, res := range s.order {
		for i := range res.Terms {
			term := &res.Terms[i]
			for _, ref := range []struct {
				relation string
				ref      *TermReference
			}{
				{"defined-by", term.DefinedBy},
				{"same-as", term.SameAs},
			} {
				if ref.ref == nil {
					continue
				}
				targetID, targetText := ref.ref.Target(res, term)
				target, err := s.Get(targetID)
				if err != nil {
					problems = append(problems, fmt.Errorf("resource %s term %q %s: %w", res.ID, term.Text, ref.relation, err))
					continue
				}
				if _, ok := target.FindTerm(targetText); !ok {
					problems = append(problems, fmt.Errorf("resource %s term %q %s: %w: %q in %s",
						res.ID, term.Text, ref.relation, kberrors.ErrTermNotFound, targetText, target.ID))
				}
			}
		}
	}
	return problems
}
