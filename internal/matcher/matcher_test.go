package matcher

import (
	"slices"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(query, field string) []Snippet {
	return slices.Collect(Match(query, field))
}

func TestMatch_WordPrefix(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		field   string
		matches []string
	}{
		{"exact", "ISSO", "ISSO", []string{"ISSO"}},
		{"case insensitive", "isso", "The ISSO shall review", []string{"ISSO"}},
		{"not inside a word", "ISSO", "Missouri", nil},
		{"prefix of a word", "secur", "Information Security Officer", []string{"Secur"}},
		{"dotted query matches dotted field", "I.S.S.O.", "the I.S.S.O. role", []string{"I.S.S.O."}},
		{"dotted query matches plain field", "I.S.S.O.", "ISSO", []string{"ISSO"}},
		{"plain query does not match dotted field", "ISSO", "I.S.S.O.", nil},
		{"space tolerates hyphen", "role based", "role-based access", []string{"role-based"}},
		{"space tolerates nothing", "data base", "database", []string{"database"}},
		{"after punctuation", "officer", "(Officer)", []string{"Officer"}},
		{"all occurrences", "ac", "AC-1 and AC-2", []string{"AC", "AC"}},
		{"empty query", "", "anything", nil},
		{"empty field", "ISSO", "", nil},
		{"no alphanumerics", "--", "a - b", nil},
		{"not after accented letter", "ve", "naïve", nil},
		{"not after leading accented letter", "ISSO", "ÉISSO office", nil},
		{"not after underscore", "isso", "role_isso", nil},
		{"after non-ascii punctuation", "ISSO", "«ISSO»", []string{"ISSO"}},
		{"after no-break space", "ISSO", "the\u00a0ISSO", []string{"ISSO"}},
		{"accented word prefix", "na", "naïve", []string{"na"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range collect(tt.query, tt.field) {
				got = append(got, s.Match)
			}
			assert.Equal(t, tt.matches, got)
		})
	}
}

func TestMatch_Context(t *testing.T) {
	before := strings.Repeat("x", 80) + " "
	after := " " + strings.Repeat("y", 300)
	snippets := collect("token", before+"Token"+after)
	require.Len(t, snippets, 1)

	s := snippets[0]
	assert.Equal(t, "Token", s.Match)
	assert.Equal(t, 50, len([]rune(s.Before)))
	assert.True(t, strings.HasSuffix(s.Before, " "))
	assert.Equal(t, 175, len([]rune(s.After)))
}

func TestMatch_ContextCountsRunes(t *testing.T) {
	field := strings.Repeat("é", 60) + " key " + strings.Repeat("ü", 200)
	s, ok := First("key", field)
	require.True(t, ok)
	assert.Equal(t, 50, len([]rune(s.Before)))
	assert.Equal(t, 175, len([]rune(s.After)))
}

func TestSnippet_HTML(t *testing.T) {
	s, ok := First("AT&T", "Owned by <AT&T> Inc.")
	require.True(t, ok)
	assert.Equal(t, "Owned by &lt;<b>AT&amp;T</b>&gt; Inc.", s.HTML())
}

func TestMatch_Restartable(t *testing.T) {
	seq := Match("ac", "AC-1 AC-2 AC-3")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
}

func TestMatch_EarlyStop(t *testing.T) {
	n := 0
	for range Match("ac", "AC-1 AC-2 AC-3") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

// Every matched span carries exactly the query's letters and digits, in order.
func TestMatch_SpanCarriesQueryAlphanumerics(t *testing.T) {
	fields := []string{
		"The Information System Security Officer (ISSO) reviews audit logs.",
		"I.S.S.O. duties: see AC-2, AC-2(1) and AU-6.",
		"role-based access control; Role Based Access Control",
		"system/security plan -- System Security Plan",
	}
	queries := []string{"ISSO", "I.S.S.O.", "ac-2", "role based", "system security plan", "AU 6", "security"}

	alnum := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return unicode.ToLower(r)
			}
			return -1
		}, s)
	}
	for _, q := range queries {
		for _, f := range fields {
			for s := range Match(q, f) {
				assert.Equal(t, alnum(q), alnum(s.Match), "query %q field %q span %q", q, f, s.Match)
			}
		}
	}
}

func TestCompile_NilPattern(t *testing.T) {
	assert.Nil(t, Compile(""))
	assert.Nil(t, Compile(" . "))
	var p *Pattern
	assert.Empty(t, slices.Collect(p.Find("text")))

	p = Compile("ISSO")
	require.NotNil(t, p)
	assert.Equal(t, "ISSO", p.Query())
}

func BenchmarkMatch(b *testing.B) {
	field := strings.Repeat("The organization employs automated mechanisms to support account management. ", 40)
	p := Compile("account management")
	b.ReportAllocs()
	b.SetBytes(int64(len(field)))
	for i := 0; i < b.N; i++ {
		for range p.Find(field) {
		}
	}
}
