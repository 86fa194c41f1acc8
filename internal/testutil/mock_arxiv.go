// Package testutil provides testing utilities for the arXiv client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Request is one request observed by MockArxiv.
type Request struct {
	Start      int
	MaxResults int
	Query      url.Values
	Header     http.Header
	At         time.Time
}

// MockArxiv is a scripted arXiv API server. It serves the configured entries
// sliced by the start and max_results parameters of each request.
type MockArxiv struct {
	server *httptest.Server

	mu       sync.Mutex
	entries  []FixtureEntry
	total    int
	totalSet bool
	failures []int
	emptyAt  map[int]int
	requests []Request
}

// NewMockArxiv starts a mock server with no entries.
func NewMockArxiv() *MockArxiv {
	mock := &MockArxiv{
		emptyAt: make(map[int]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the query endpoint of the mock server.
func (m *MockArxiv) URL() string {
	return m.server.URL + "/api/query"
}

// Close shuts down the mock server.
func (m *MockArxiv) Close() {
	m.server.Close()
}

// SetEntries replaces the full result set.
func (m *MockArxiv) SetEntries(entries ...FixtureEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
}

// SetTotal overrides the declared totalResults, which otherwise equals the
// number of entries.
func (m *MockArxiv) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
	m.totalSet = true
}

// FailNext makes the next requests answer with the given statuses, in order,
// before normal service resumes.
func (m *MockArxiv) FailNext(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, statuses...)
}

// ServeEmptyAt makes the next times requests for start return a page with
// no entries.
func (m *MockArxiv) ServeEmptyAt(start, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptyAt[start] = times
}

// Requests returns a copy of the request log.
func (m *MockArxiv) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests served.
func (m *MockArxiv) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockArxiv) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, _ := strconv.Atoi(q.Get("start"))
	maxResults, _ := strconv.Atoi(q.Get("max_results"))

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Start:      start,
		MaxResults: maxResults,
		Query:      q,
		Header:     r.Header.Clone(),
		At:         time.Now(),
	})

	if len(m.failures) > 0 {
		status := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}

	total := len(m.entries)
	if m.totalSet {
		total = m.total
	}

	feed := FixtureFeed{
		TotalResults: total,
		StartIndex:   start,
		ItemsPerPage: maxResults,
	}
	if n := m.emptyAt[start]; n > 0 {
		m.emptyAt[start] = n - 1
	} else if start < len(m.entries) {
		end := len(m.entries)
		if maxResults > 0 && start+maxResults < end {
			end = start + maxResults
		}
		feed.Entries = m.entries[start:end]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(feed.XML())
}
