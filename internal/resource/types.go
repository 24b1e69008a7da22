// Package resource defines the compliance corpus records (documents, policy
// documents and roles), loads them from YAML files and serves them from an
// immutable in-memory Store.
package resource

// Kind classifies a resource record. It is stored under the YAML key "type".
type Kind string

const (
	KindAuthoritativeDocument Kind = "authoritative-document"
	KindPolicyDocument        Kind = "policy-document"
	KindRole                  Kind = "role"
	KindOther                 Kind = "other"
)

// Searchable reports whether resources of this kind take part in search.
func (k Kind) Searchable() bool {
	switch k {
	case KindAuthoritativeDocument, KindPolicyDocument, KindRole:
		return true
	default:
		return false
	}
}

// IsDocument reports whether the kind is one of the document kinds.
func (k Kind) IsDocument() bool {
	return k == KindAuthoritativeDocument || k == KindPolicyDocument
}

// Resource is one document or role record.
type Resource struct {
	ID          string   `yaml:"id" json:"id"`
	Kind        Kind     `yaml:"type" json:"type"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	AltTitles   []string `yaml:"alt-titles,omitempty" json:"alt-titles,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	ShortTitle  string   `yaml:"short-title,omitempty" json:"short-title,omitempty"`
	Terms       []Term   `yaml:"terms,omitempty" json:"terms,omitempty"`

	// Location metadata, consumed only by the page-text and thumbnail
	// collaborators.
	Owner            string `yaml:"owner,omitempty" json:"owner,omitempty"`
	URL              string `yaml:"url,omitempty" json:"url,omitempty"`
	AuthoritativeURL string `yaml:"authoritative-url,omitempty" json:"authoritative-url,omitempty"`
	Format           string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Label is the name used when another resource's match path cites this one.
func (r *Resource) Label() string {
	if r.ShortTitle != "" {
		return r.ShortTitle
	}
	return r.ID
}

// FindTerm returns the first term whose text equals text. When several terms
// share the same text, declaration order decides.
func (r *Resource) FindTerm(text string) (*Term, bool) {
	for i := range r.Terms {
		if r.Terms[i].Text == text {
			return &r.Terms[i], true
		}
	}
	return nil, false
}

// Term is a vocabulary entry anchored to one resource.
type Term struct {
	Text      string         `yaml:"text" json:"text"`
	Page      *int           `yaml:"page,omitempty" json:"page,omitempty"`
	DefinedBy *TermReference `yaml:"defined-by,omitempty" json:"defined-by,omitempty"`
	SameAs    *TermReference `yaml:"same-as,omitempty" json:"same-as,omitempty"`
}

// HasPage reports whether the term declares the page it appears on.
func (t *Term) HasPage() bool {
	return t.Page != nil
}

// TermReference points from one term to another, possibly in another
// resource.
type TermReference struct {
	// Document is the target resource ID; empty means the current resource.
	Document string `yaml:"document,omitempty" json:"document,omitempty"`
	// Term is the target term text; empty means the source term's text.
	Term string `yaml:"term,omitempty" json:"term,omitempty"`
}

// Target resolves the reference's defaults against the resource and term it
// hangs off.
func (ref *TermReference) Target(from *Resource, term *Term) (resourceID, termText string) {
	resourceID = ref.Document
	if resourceID == "" {
		resourceID = from.ID
	}
	termText = ref.Term
	if termText == "" {
		termText = term.Text
	}
	return resourceID, termText
}
