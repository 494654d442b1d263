package music

import (
	"errors"
	"time"
)

var ErrPlaceholderNotFound = errors.New("placeholder not found")

// Placeholder stands in the visible queue for a request whose media is still being fetched.
type Placeholder struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	ResolvedEntryID string    `json:"resolved_entry_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Resolved reports whether the placeholder's track has been enqueued.
func (p Placeholder) Resolved() bool {
	return p.ResolvedEntryID != ""
}

// PlaceholderRegistry keeps placeholders in registration order.
type PlaceholderRegistry interface {
	// Add registers an unresolved placeholder.
	Add(id, query string) Placeholder
	// Resolve sets the queue entry the placeholder turned into. It fails if the
	// placeholder is unknown or already resolved.
	Resolve(id, entryID string) error
	// Discard drops an unresolved placeholder after a failed fetch.
	Discard(id string) bool
	// TakeResolved removes every resolved placeholder and returns their queries keyed by entry id.
	TakeResolved() map[string]string
	// Pending returns the unresolved placeholders in registration order.
	Pending() []Placeholder
	// Len returns the number of placeholders, resolved or not.
	Len() int
}
