// Package pagination walks an arXiv result set page by page.
//
// The API returns at most a page of entries per request, addressed by an
// absolute start offset, and declares the size of the full result set on
// every page. A Cursor turns that into a single lazy sequence of results:
//
//	cursor := pagination.NewCursor(fetcher, 0, &maxResults)
//	for cursor.Next(ctx) {
//		r := cursor.Result()
//		...
//	}
//	if err := cursor.Err(); err != nil {
//		...
//	}
//
// or, with range-over-func:
//
//	for r, err := range cursor.All(ctx) { ... }
//
// The cursor:
//   - Never touches the network when the cap leaves nothing to fetch
//   - Treats an empty first page as an empty result set
//   - Takes the total from the first page and ignores later values
//   - Advances by the number of entries actually served, not the page size
//   - Stops as soon as the cap is reached, without prefetching
//
// Pages are fetched strictly one at a time. Retrying a failed page is the
// fetcher's job; any error it returns ends the sequence.
package pagination
