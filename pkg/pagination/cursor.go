package pagination

import (
	"context"
	"iter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/arxiv-client/pkg/feed"
)

// Prometheus metrics for result set walks.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arxiv_pages_fetched_total",
		Help: "Total number of result pages consumed by cursors",
	})

	resultsYieldedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arxiv_results_yielded_total",
		Help: "Total number of results delivered to callers",
	})
)

// PageFetcher fetches the page of results starting at offset. first is true
// for the first request of a walk, where an empty page is a valid answer.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset int, first bool) (*feed.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, offset int, first bool) (*feed.Page, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, offset int, first bool) (*feed.Page, error) {
	return f(ctx, offset, first)
}

// State is the position of a Cursor in its walk.
type State int

const (
	StateStart State = iota
	StateFetching
	StateYielding
	StateDone
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateYielding:
		return "yielding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cursor is a single-use walk over a result set. It is not safe for
// concurrent use and cannot be restarted; create a new Cursor to run the
// search again.
type Cursor struct {
	fetcher PageFetcher

	offset  int
	bounded bool
	limit   int

	state   State
	first   bool
	total   int
	page    []*feed.Result
	pos     int
	yielded int

	// pageSize is the entry count of the current page, dropped entries
	// included.
	pageSize int
	fetches int

	current *feed.Result
	err     error
}

// NewCursor creates a cursor that starts at the absolute offset. A nil
// maxResults means unbounded; otherwise at most *maxResults - offset results
// are produced.
func NewCursor(fetcher PageFetcher, offset int, maxResults *int) *Cursor {
	c := &Cursor{
		fetcher: fetcher,
		offset:  offset,
		state:   StateStart,
		first:   true,
	}
	if maxResults != nil {
		c.bounded = true
		c.limit = *maxResults - offset
	}
	return c
}

// Next advances to the next result, fetching a page when the current one is
// exhausted. It returns false when the walk is done or has failed; check Err
// to tell the two apart.
func (c *Cursor) Next(ctx context.Context) bool {
	c.current = nil
	for {
		switch c.state {
		case StateStart:
			if c.bounded && c.limit <= 0 {
				log.Debug().
					Int("offset", c.offset).
					Int("limit", c.limit).
					Msg("Nothing to fetch for cap")
				c.state = StateDone
				continue
			}
			c.state = StateFetching

		case StateFetching:
			if !c.fetch(ctx) {
				continue
			}
			c.state = StateYielding

		case StateYielding:
			if c.bounded && c.yielded >= c.limit {
				c.finish("Cap reached")
				continue
			}
			if c.pos < len(c.page) {
				c.current = c.page[c.pos]
				c.pos++
				c.yielded++
				resultsYieldedTotal.Inc()
				return true
			}
			c.offset += c.pageSize
			if c.offset >= c.total {
				c.finish("Result set exhausted")
				continue
			}
			c.state = StateFetching

		case StateDone, StateFailed:
			return false
		}
	}
}

// fetch loads the page at the current offset. It returns false after moving
// the cursor to a terminal state.
func (c *Cursor) fetch(ctx context.Context) bool {
	page, err := c.fetcher.FetchPage(ctx, c.offset, c.first)
	c.fetches++
	if err != nil {
		log.Warn().
			Err(err).
			Int("offset", c.offset).
			Int("yielded", c.yielded).
			Msg("Page fetch failed")
		c.err = err
		c.state = StateFailed
		return false
	}
	pagesFetchedTotal.Inc()

	if c.first {
		c.first = false
		c.total = page.TotalResults
		if page.Size() == 0 {
			c.finish("Got empty first page")
			return false
		}
		log.Debug().
			Int("offset", c.offset).
			Int("total_results", c.total).
			Msg("Starting result walk")
	} else if page.Size() == 0 {
		// A fetcher is expected to reject empty later pages; stop rather
		// than request the same offset forever.
		log.Warn().Int("offset", c.offset).Msg("Fetcher returned empty page; stopping")
		c.state = StateDone
		return false
	}

	if dropped := page.Size() - page.Len(); dropped > 0 {
		log.Debug().Int("offset", c.offset).Int("dropped", dropped).Msg("Page has dropped entries")
	}
	c.page = page.Results
	c.pageSize = page.Size()
	c.pos = 0
	return true
}

func (c *Cursor) finish(reason string) {
	log.Debug().
		Int("offset", c.offset).
		Int("yielded", c.yielded).
		Int("fetches", c.fetches).
		Msg(reason)
	c.page = nil
	c.pageSize = 0
	c.state = StateDone
}

// Result returns the result produced by the last successful Next.
func (c *Cursor) Result() *feed.Result {
	return c.current
}

// Err returns the error that ended the walk, if any.
func (c *Cursor) Err() error {
	return c.err
}

// State returns the cursor state.
func (c *Cursor) State() State {
	return c.state
}

// Offset returns the absolute index of the next page request.
func (c *Cursor) Offset() int {
	return c.offset
}

// Yielded returns how many results this cursor has produced.
func (c *Cursor) Yielded() int {
	return c.yielded
}

// Total returns the result set size declared by the first page.
func (c *Cursor) Total() int {
	return c.total
}

// Fetches returns how many page requests the cursor has made.
func (c *Cursor) Fetches() int {
	return c.fetches
}

// All returns the remaining results as a sequence. A failure is delivered
// as a final (nil, err) pair. Breaking out of the loop stops the walk
// without fetching further pages.
func (c *Cursor) All(ctx context.Context) iter.Seq2[*feed.Result, error] {
	return func(yield func(*feed.Result, error) bool) {
		for c.Next(ctx) {
			if !yield(c.Result(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}
