package feed

import "fmt"

// MalformedEntryError reports an entry that was dropped because a required
// field is absent.
type MalformedEntryError struct {
	// Index is the zero-based position of the entry in the feed.
	Index int
	Field string
}

// Error implements the error interface.
func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("entry %d: missing required field %q", e.Index, e.Field)
}

// MalformedFeedError reports a payload that could not be parsed as Atom.
// The page it is attached to has no results.
type MalformedFeedError struct {
	Err error
}

// Error implements the error interface.
func (e *MalformedFeedError) Error() string {
	return fmt.Sprintf("malformed feed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

// EntryWarning is a non-fatal problem with an entry that was kept.
type EntryWarning struct {
	EntryID string
	Message string
}

// Error implements the error interface.
func (e *EntryWarning) Error() string {
	return fmt.Sprintf("entry %s: %s", e.EntryID, e.Message)
}
