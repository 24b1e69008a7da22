// Package matcher implements the lenient word-prefix matching used to test a
// query against any text field.
//
// Letters and digits in the query must appear verbatim (ignoring case); every
// other query character matches zero or one arbitrary character. A match must
// start at the beginning of the field or right after a character that is not
// a letter, digit or underscore in any script, so "ISSO" matches
// "the ISSO shall" but neither "Missouri" nor "ÉISSO".
package matcher

import (
	"html"
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	contextBefore = 50
	contextAfter  = 175
)

// nonWord matches one character that is not a Unicode letter, digit or
// underscore. RE2's \W treats every non-ASCII letter as a boundary.
const nonWord = `[^\p{L}\p{N}_]`

// Snippet is one match in a field plus the text around it.
type Snippet struct {
	Before string `json:"before"`
	Match  string `json:"match"`
	After  string `json:"after"`
}

// HTML renders the snippet for embedding in markup, with the matched span in
// bold.
func (s Snippet) HTML() string {
	return html.EscapeString(s.Before) + "<b>" + html.EscapeString(s.Match) + "</b>" + html.EscapeString(s.After)
}

// Pattern is a compiled query.
type Pattern struct {
	query string
	re    *regexp.Regexp
}

// Compile builds the pattern for query. It returns nil when the query has no
// letters or digits, since such a query would match everywhere.
func Compile(query string) *Pattern {
	var b strings.Builder
	hasAlnum := false
	for _, c := range query {
		if isASCIIAlnum(c) {
			hasAlnum = true
			b.WriteString(regexp.QuoteMeta(string(c)))
			continue
		}
		b.WriteString(".?")
	}
	if !hasAlnum {
		return nil
	}
	re := regexp.MustCompile(`(?i)(?:^|` + nonWord + `)(` + b.String() + `)`)
	return &Pattern{query: query, re: re}
}

// Query returns the query the pattern was compiled from.
func (p *Pattern) Query() string {
	return p.query
}

// Find yields every non-overlapping match in field, left to right. A nil
// pattern yields nothing.
func (p *Pattern) Find(field string) iter.Seq[Snippet] {
	return func(yield func(Snippet) bool) {
		if p == nil || field == "" {
			return
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(field, -1) {
			start, end := loc[2], loc[3]
			if start == end {
				continue
			}
			snippet := Snippet{
				Before: lastRunes(field[:start], contextBefore),
				Match:  field[start:end],
				After:  firstRunes(field[end:], contextAfter),
			}
			if !yield(snippet) {
				return
			}
		}
	}
}

// First returns the first match in field.
func (p *Pattern) First(field string) (Snippet, bool) {
	for s := range p.Find(field) {
		return s, true
	}
	return Snippet{}, false
}

// Match compiles query and scans field with it.
func Match(query, field string) iter.Seq[Snippet] {
	return Compile(query).Find(field)
}

// First returns the first snippet of Match(query, field).
func First(query, field string) (Snippet, bool) {
	return Compile(query).First(field)
}

func isASCIIAlnum(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func lastRunes(s string, n int) string {
	i := len(s)
	for count := 0; i > 0 && count < n; count++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

func firstRunes(s string, n int) string {
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
