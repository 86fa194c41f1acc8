package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SortCriterion is the field results are ordered by.
type SortCriterion string

const (
	SortByRelevance       SortCriterion = "relevance"
	SortByLastUpdatedDate SortCriterion = "lastUpdatedDate"
	SortBySubmittedDate   SortCriterion = "submittedDate"
)

// SortOrder is the direction of the ordering.
type SortOrder string

const (
	SortOrderAscending  SortOrder = "ascending"
	SortOrderDescending SortOrder = "descending"
)

// Search describes a query. The zero values of SortBy and SortOrder select
// relevance, descending.
type Search struct {
	// Query uses the API query syntax, for example "au:del_maestro AND ti:checkerboard".
	Query string

	// IDList restricts results to these identifiers.
	IDList []string

	// MaxResults caps the number of results; nil fetches everything the
	// service returns.
	MaxResults *int

	SortBy    SortCriterion
	SortOrder SortOrder
}

// WithMaxResults returns a copy of s capped at n results.
func (s Search) WithMaxResults(n int) Search {
	s.MaxResults = &n
	return s
}

// Validate checks s before any request is made. The query itself is passed
// through untouched.
func (s Search) Validate() error {
	if s.MaxResults != nil && *s.MaxResults < 0 {
		return &ConfigurationError{Field: "max_results", Reason: "must not be negative"}
	}
	switch s.SortBy {
	case "", SortByRelevance, SortByLastUpdatedDate, SortBySubmittedDate:
	default:
		return &ConfigurationError{Field: "sort_by", Reason: fmt.Sprintf("unknown criterion %q", s.SortBy)}
	}
	switch s.SortOrder {
	case "", SortOrderAscending, SortOrderDescending:
	default:
		return &ConfigurationError{Field: "sort_order", Reason: fmt.Sprintf("unknown order %q", s.SortOrder)}
	}
	return nil
}

func (s Search) sortBy() SortCriterion {
	if s.SortBy == "" {
		return SortByRelevance
	}
	return s.SortBy
}

func (s Search) sortOrder() SortOrder {
	if s.SortOrder == "" {
		return SortOrderDescending
	}
	return s.SortOrder
}

// QueryURL builds the request URL for the page of s starting at offset.
// Every parameter is always present and keys are encoded in sorted order,
// so equal inputs give byte-identical URLs.
func QueryURL(baseURL string, s Search, offset, pageSize int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	params := url.Values{}
	params.Set("search_query", s.Query)
	params.Set("id_list", strings.Join(s.IDList, ","))
	params.Set("sortBy", string(s.sortBy()))
	params.Set("sortOrder", string(s.sortOrder()))
	params.Set("start", strconv.Itoa(offset))
	params.Set("max_results", strconv.Itoa(pageSize))

	u.RawQuery = params.Encode()
	return u.String(), nil
}
