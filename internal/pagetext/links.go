// Package pagetext locates and fetches the text of individual document pages
// and builds thumbnail and page links for documents hosted on DocumentCloud.
package pagetext

import (
	"fmt"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
)

var documentCloudURL = regexp.MustCompile(`^https://www\.documentcloud\.org/documents/(\d+)-([^.]+)\.html$`)

// DocumentCloudID identifies a DocumentCloud document: its numeric ID and
// its slug.
type DocumentCloudID struct {
	Number string
	Slug   string
}

// ParseDocumentCloud extracts the document ID from a DocumentCloud document
// URL such as https://www.documentcloud.org/documents/2932-nist-sp-800-53.html.
func ParseDocumentCloud(url string) (DocumentCloudID, bool) {
	m := documentCloudURL.FindStringSubmatch(url)
	if m == nil {
		return DocumentCloudID{}, false
	}
	return DocumentCloudID{Number: m[1], Slug: m[2]}, true
}

// ThumbnailURL is the page image hosted by DocumentCloud.
func (id DocumentCloudID) ThumbnailURL(page int, small bool) string {
	size := "normal"
	if small {
		size = "small"
	}
	return fmt.Sprintf("https://assets.documentcloud.org/documents/%s/pages/%s-p%d-%s.gif", id.Number, id.Slug, page, size)
}

// PageURL opens the document viewer at page.
func (id DocumentCloudID) PageURL(page int) string {
	return fmt.Sprintf("https://www.documentcloud.org/documents/%s-%s.html#document/p%d", id.Number, id.Slug, page)
}

// TextURL is the plain text of page.
func (id DocumentCloudID) TextURL(page int) string {
	return fmt.Sprintf("https://www.documentcloud.org/documents/%s/pages/%s-p%d.txt", id.Number, id.Slug, page)
}

// Links builds thumbnail and page links from resource URLs. Resources not
// hosted on DocumentCloud have neither.
type Links struct{}

func (Links) Thumbnail(res *resource.Resource, page int, small bool) string {
	id, ok := ParseDocumentCloud(res.URL)
	if !ok {
		return ""
	}
	return id.ThumbnailURL(page, small)
}

func (Links) PageLink(res *resource.Resource, page int) string {
	id, ok := ParseDocumentCloud(res.URL)
	if !ok {
		return ""
	}
	return id.PageURL(page)
}
