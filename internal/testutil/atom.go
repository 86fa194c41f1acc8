package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// FixtureAuthor is an author in a fixture entry.
type FixtureAuthor struct {
	Name        string
	Affiliation string
}

// FixtureLink is a link in a fixture entry.
type FixtureLink struct {
	Href  string
	Title string
	Rel   string
	Type  string
}

// FixtureEntry describes one Atom entry. Empty optional fields are omitted
// from the generated XML.
type FixtureEntry struct {
	ID              string
	Title           string
	Summary         string
	Published       time.Time
	Updated         time.Time
	Authors         []FixtureAuthor
	Links           []FixtureLink
	Categories      []string
	PrimaryCategory string
	Comment         string
	JournalRef      string
	DOI             string

	OmitID    bool
	OmitTitle bool
}

// FixtureFeed describes an arXiv API response.
type FixtureFeed struct {
	TotalResults int
	StartIndex   int
	ItemsPerPage int
	Entries      []FixtureEntry

	// OmitOpenSearch leaves out the totalResults/startIndex/itemsPerPage
	// elements.
	OmitOpenSearch bool
}

// NewEntry returns a complete fixture entry numbered n.
func NewEntry(n int) FixtureEntry {
	id := fmt.Sprintf("2101.%05dv1", n)
	published := time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
	return FixtureEntry{
		ID:        "http://arxiv.org/abs/" + id,
		Title:     fmt.Sprintf("Paper number %d", n),
		Summary:   fmt.Sprintf("Summary of paper %d.", n),
		Published: published,
		Updated:   published.Add(24 * time.Hour),
		Authors: []FixtureAuthor{
			{Name: fmt.Sprintf("Author %d", n)},
		},
		Links: []FixtureLink{
			{Href: "http://arxiv.org/abs/" + id, Rel: "alternate", Type: "text/html"},
			{Href: "http://arxiv.org/pdf/" + id, Title: "pdf", Rel: "related", Type: "application/pdf"},
		},
		Categories:      []string{"cs.LG", "stat.ML"},
		PrimaryCategory: "cs.LG",
	}
}

// NewEntries returns count fixture entries numbered from first.
func NewEntries(first, count int) []FixtureEntry {
	entries := make([]FixtureEntry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, NewEntry(first+i))
	}
	return entries
}

// XML renders the feed.
func (f FixtureFeed) XML() []byte {
	var b bytes.Buffer

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">` + "\n")
	b.WriteString(`  <link href="http://arxiv.org/api/query" rel="self" type="application/atom+xml"/>` + "\n")
	b.WriteString(`  <title type="html">ArXiv Query: fixture</title>` + "\n")
	b.WriteString(`  <id>http://arxiv.org/api/fixture</id>` + "\n")
	b.WriteString(`  <updated>2021-01-01T00:00:00-05:00</updated>` + "\n")
	if !f.OmitOpenSearch {
		fmt.Fprintf(&b, "  <opensearch:totalResults>%d</opensearch:totalResults>\n", f.TotalResults)
		fmt.Fprintf(&b, "  <opensearch:startIndex>%d</opensearch:startIndex>\n", f.StartIndex)
		fmt.Fprintf(&b, "  <opensearch:itemsPerPage>%d</opensearch:itemsPerPage>\n", f.ItemsPerPage)
	}

	for _, e := range f.Entries {
		writeEntry(&b, e)
	}

	b.WriteString("</feed>\n")
	return b.Bytes()
}

func writeEntry(b *bytes.Buffer, e FixtureEntry) {
	b.WriteString("  <entry>\n")
	if !e.OmitID {
		element(b, "id", e.ID)
	}
	if !e.Published.IsZero() {
		element(b, "published", e.Published.Format(time.RFC3339))
	}
	if !e.Updated.IsZero() {
		element(b, "updated", e.Updated.Format(time.RFC3339))
	}
	if !e.OmitTitle {
		element(b, "title", e.Title)
	}
	element(b, "summary", e.Summary)

	for _, a := range e.Authors {
		b.WriteString("    <author>\n  ")
		element(b, "name", a.Name)
		if a.Affiliation != "" {
			b.WriteString("  ")
			element(b, "arxiv:affiliation", a.Affiliation)
		}
		b.WriteString("    </author>\n")
	}

	if e.Comment != "" {
		element(b, "arxiv:comment", e.Comment)
	}
	if e.JournalRef != "" {
		element(b, "arxiv:journal_ref", e.JournalRef)
	}
	if e.DOI != "" {
		element(b, "arxiv:doi", e.DOI)
	}

	for _, l := range e.Links {
		b.WriteString("    <link")
		attr(b, "href", l.Href)
		attr(b, "title", l.Title)
		attr(b, "rel", l.Rel)
		attr(b, "type", l.Type)
		b.WriteString("/>\n")
	}

	if e.PrimaryCategory != "" {
		b.WriteString(`    <arxiv:primary_category xmlns:arxiv="http://arxiv.org/schemas/atom"`)
		attr(b, "term", e.PrimaryCategory)
		b.WriteString(` scheme="http://arxiv.org/schemas/atom"/>` + "\n")
	}
	for _, c := range e.Categories {
		b.WriteString("    <category")
		attr(b, "term", c)
		b.WriteString(` scheme="http://arxiv.org/schemas/atom"/>` + "\n")
	}

	b.WriteString("  </entry>\n")
}

func element(b *bytes.Buffer, name, text string) {
	fmt.Fprintf(b, "    <%s>%s</%s>\n", name, escape(text), name)
}

func attr(b *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, ` %s="%s"`, name, escape(value))
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// escape leaves whitespace untouched so fixtures can carry raw newlines.
func escape(s string) string {
	return escaper.Replace(s)
}
