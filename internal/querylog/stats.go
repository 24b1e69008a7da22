package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

const (
	statsWindow = 250
	statsTopN   = 20
)

// Count is an item and how often it occurred. It encodes as a two-element
// JSON array, e.g. ["isso", 4].
type Count struct {
	Item  string
	Count int
}

func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Item, c.Count})
}

func (c *Count) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("count: want [item, count], got %s", data)
	}
	if err := json.Unmarshal(pair[0], &c.Item); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &c.Count)
}

// Stats summarises the most recent searches.
type Stats struct {
	MostFrequentQueries          []Count `json:"most_freq_queries"`
	MostFrequentQueriesNoResults []Count `json:"most_freq_queries_no_results"`
	MostFrequentDocs             []Count `json:"most_freq_docs"`
}

// Stats computes query statistics over the 250 most recent entries, keeping
// the top 20 of each list.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.Recent(ctx, statsWindow)
	if err != nil {
		return nil, err
	}
	return Summarize(entries, statsTopN), nil
}

// Summarize builds Stats from entries ordered newest first.
func Summarize(entries []Entry, n int) *Stats {
	var queries, noResults, docs counter
	for _, e := range entries {
		queries.add(e.Query)
		if len(e.Matched) == 0 {
			noResults.add(e.Query)
		}
		for _, id := range e.Matched {
			docs.add(id)
		}
	}
	return &Stats{
		MostFrequentQueries:          queries.top(n),
		MostFrequentQueriesNoResults: noResults.top(n),
		MostFrequentDocs:             docs.top(n),
	}
}

// counter counts items and remembers the order they were first seen in, which
// breaks ties.
type counter struct {
	index  map[string]int
	counts []Count
}

func (c *counter) add(item string) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	i, ok := c.index[item]
	if !ok {
		i = len(c.counts)
		c.index[item] = i
		c.counts = append(c.counts, Count{Item: item})
	}
	c.counts[i].Count++
}

func (c *counter) top(n int) []Count {
	out := slices.Clone(c.counts)
	slices.SortStableFunc(out, func(a, b Count) int {
		return b.Count - a.Count
	})
	if len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []Count{}
	}
	return out
}
