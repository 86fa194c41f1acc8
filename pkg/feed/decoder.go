package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Decode parses one API response.
//
// A payload that is not valid Atom yields an empty page carrying a
// *MalformedFeedError warning rather than an error, so callers apply their
// normal empty-page handling. The returned error is non-nil only for a nil
// payload.
func Decode(data []byte) (*Page, error) {
	if data == nil {
		return nil, errors.New("decode feed: nil payload")
	}

	page := &Page{}

	parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		page.Warnings = append(page.Warnings, &MalformedFeedError{Err: err})
		return page, nil
	}

	page.Title = collapseWhitespace(parsed.Title)
	page.ID = strings.TrimSpace(parsed.ID)
	page.TotalResults = extensionInt(parsed.Extensions, NamespaceOpenSearch, "opensearch", "totalResults")
	page.StartIndex = extensionInt(parsed.Extensions, NamespaceOpenSearch, "opensearch", "startIndex")
	page.ItemsPerPage = extensionInt(parsed.Extensions, NamespaceOpenSearch, "opensearch", "itemsPerPage")

	affiliations := decodeAffiliations(data, len(parsed.Entries))

	page.Entries = len(parsed.Entries)
	page.Results = make([]*Result, 0, len(parsed.Entries))
	for i, entry := range parsed.Entries {
		if entry == nil || strings.TrimSpace(entry.ID) == "" {
			page.Warnings = append(page.Warnings, &MalformedEntryError{Index: i, Field: "id"})
			continue
		}

		result, warnings := decodeEntry(entry, affiliations[i])
		page.Results = append(page.Results, result)
		page.Warnings = append(page.Warnings, warnings...)
	}

	return page, nil
}

func decodeEntry(entry *atom.Entry, affiliations []string) (*Result, []error) {
	var warnings []error

	r := &Result{
		EntryID:    strings.TrimSpace(entry.ID),
		Title:      collapseWhitespace(entry.Title),
		Summary:    entry.Summary,
		Updated:    utc(entry.UpdatedParsed),
		Published:  utc(entry.PublishedParsed),
		Authors:    make([]Author, 0, len(entry.Authors)),
		Categories: make([]string, 0, len(entry.Categories)),
		Links:      make([]Link, 0, len(entry.Links)),
	}

	if r.Title == "" {
		r.Title = MissingTitle
		warnings = append(warnings, &EntryWarning{
			EntryID: r.EntryID,
			Message: fmt.Sprintf("missing title; defaulting to %q", MissingTitle),
		})
	}

	for i, person := range entry.Authors {
		if person == nil {
			continue
		}
		author := Author{Name: strings.TrimSpace(person.Name)}
		if i < len(affiliations) {
			author.Affiliation = affiliations[i]
		}
		r.Authors = append(r.Authors, author)
	}

	for _, category := range entry.Categories {
		if category != nil && category.Term != "" {
			r.Categories = append(r.Categories, category.Term)
		}
	}

	var pdfLinks []string
	for _, link := range entry.Links {
		if link == nil {
			continue
		}
		r.Links = append(r.Links, Link{
			Href:        link.Href,
			Title:       link.Title,
			Rel:         link.Rel,
			ContentType: link.Type,
		})
		if link.Title == pdfLinkTitle {
			pdfLinks = append(pdfLinks, link.Href)
		}
	}
	if len(pdfLinks) > 0 {
		r.PDFURL = pdfLinks[0]
	}
	if len(pdfLinks) > 1 {
		warnings = append(warnings, &EntryWarning{
			EntryID: r.EntryID,
			Message: fmt.Sprintf("%d pdf links; using %s", len(pdfLinks), r.PDFURL),
		})
	}

	if e, ok := extension(entry.Extensions, NamespaceArxiv, "arxiv", "primary_category"); ok {
		r.PrimaryCategory = e.Attrs["term"]
	}
	r.Comment = extensionValue(entry.Extensions, NamespaceArxiv, "arxiv", "comment")
	r.JournalRef = extensionValue(entry.Extensions, NamespaceArxiv, "arxiv", "journal_ref")
	r.DOI = extensionValue(entry.Extensions, NamespaceArxiv, "arxiv", "doi")

	return r, warnings
}

// affiliationFeed picks arxiv:affiliation out of the author elements. The
// Atom parser only keeps name, email, and uri for a person.
type affiliationFeed struct {
	Entries []struct {
		Authors []struct {
			Affiliations []string `xml:"http://arxiv.org/schemas/atom affiliation"`
		} `xml:"http://www.w3.org/2005/Atom author"`
	} `xml:"http://www.w3.org/2005/Atom entry"`
}

// decodeAffiliations returns, per entry, the first affiliation of each
// author. The result always has n elements; entries stay empty when the
// payload cannot be aligned with the parsed feed.
func decodeAffiliations(data []byte, n int) [][]string {
	out := make([][]string, n)

	var doc affiliationFeed
	if err := xml.Unmarshal(data, &doc); err != nil || len(doc.Entries) != n {
		return out
	}

	for i, entry := range doc.Entries {
		out[i] = make([]string, len(entry.Authors))
		for j, author := range entry.Authors {
			if len(author.Affiliations) > 0 {
				out[i][j] = strings.TrimSpace(author.Affiliations[0])
			}
		}
	}
	return out
}

// extension looks an element up under the declared prefix first and the
// namespace URI second, since the parser keys unknown namespaces by
// whichever the document provides.
func extension(exts ext.Extensions, namespace, prefix, name string) (ext.Extension, bool) {
	for _, key := range []string{prefix, namespace} {
		if values := exts[key][name]; len(values) > 0 {
			return values[0], true
		}
	}
	return ext.Extension{}, false
}

func extensionValue(exts ext.Extensions, namespace, prefix, name string) string {
	e, ok := extension(exts, namespace, prefix, name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(e.Value)
}

func extensionInt(exts ext.Extensions, namespace, prefix, name string) int {
	n, err := strconv.Atoi(extensionValue(exts, namespace, prefix, name))
	if err != nil {
		return 0
	}
	return n
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func utc(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
