// Package feed decodes arXiv API responses (Atom 1.0 with the arxiv and
// OpenSearch extensions) into result records.
//
// Decoding is pure: Decode never performs I/O and never fails on a single
// bad entry. Entries without an identifier are dropped and reported through
// Page.Warnings together with any other soft diagnostics.
package feed

import (
	"strings"
	"time"
)

// XML namespaces used by the arXiv API.
const (
	NamespaceAtom       = "http://www.w3.org/2005/Atom"
	NamespaceArxiv      = "http://arxiv.org/schemas/atom"
	NamespaceOpenSearch = "http://a9.com/-/spec/opensearch/1.1/"
)

// MissingTitle replaces the title of an entry that has none.
const MissingTitle = "0"

const (
	pdfLinkTitle  = "pdf"
	absPathMarker = "arxiv.org/abs/"
	doiResolver   = "https://doi.org/"
)

// Page is one decoded API response.
type Page struct {
	Title        string
	ID           string
	TotalResults int
	StartIndex   int
	ItemsPerPage int

	// Results holds the entries that passed validation, in feed order.
	Results []*Result

	// Entries is the number of entries present in the payload, including
	// the ones dropped for a missing id.
	Entries int

	// Warnings collects soft diagnostics: dropped entries, substituted
	// titles, ambiguous PDF links, and unparseable payloads.
	Warnings []error
}

// Len returns the number of valid entries on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Results)
}

// Size returns the number of entries the server sent for this page. Paging
// advances by Size, not Len, so dropped entries are skipped exactly once.
func (p *Page) Size() int {
	if p == nil {
		return 0
	}
	if p.Entries < len(p.Results) {
		return len(p.Results)
	}
	return p.Entries
}

// Author is an entry author.
type Author struct {
	Name        string `json:"name" yaml:"name"`
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
}

// Link is an entry link.
type Link struct {
	Href        string `json:"href" yaml:"href"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Rel         string `json:"rel,omitempty" yaml:"rel,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// Result is a single search result.
type Result struct {
	EntryID         string    `json:"entry_id" yaml:"entry_id"`
	Updated         time.Time `json:"updated" yaml:"updated"`
	Published       time.Time `json:"published" yaml:"published"`
	Title           string    `json:"title" yaml:"title"`
	Authors         []Author  `json:"authors" yaml:"authors"`
	Summary         string    `json:"summary" yaml:"summary"`
	Comment         string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	JournalRef      string    `json:"journal_ref,omitempty" yaml:"journal_ref,omitempty"`
	DOI             string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	PrimaryCategory string    `json:"primary_category" yaml:"primary_category"`
	Categories      []string  `json:"categories" yaml:"categories"`
	Links           []Link    `json:"links" yaml:"links"`

	// PDFURL is the href of the first link titled "pdf", or empty.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
}

// ShortID returns the identifier without the abs URL prefix, for example
// "2107.05580v1" or "hep-th/9901001v1".
func (r *Result) ShortID() string {
	if i := strings.LastIndex(r.EntryID, absPathMarker); i >= 0 {
		return r.EntryID[i+len(absPathMarker):]
	}
	return r.EntryID
}

// SourceURL returns the URL of the source tarball, or empty when the
// result has no PDF link.
func (r *Result) SourceURL() string {
	if r.PDFURL == "" {
		return ""
	}
	return strings.Replace(r.PDFURL, "/pdf/", "/src/", 1)
}

// DOIURL returns a resolvable URL for the DOI, or empty.
func (r *Result) DOIURL() string {
	if r.DOI == "" {
		return ""
	}
	return doiResolver + r.DOI
}

// Equal reports whether both results name the same entry.
func (r *Result) Equal(other *Result) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.EntryID == other.EntryID
}
