package music

import "errors"

var ErrEntryNotFound = errors.New("queue entry not found")

// QueueEntry is a confirmed, playable track waiting for the player.
type QueueEntry struct {
	ID                string        `json:"id"`
	Metadata          TrackMetadata `json:"metadata"`
	ManuallyRequested bool          `json:"manually_requested"`
	Votes             int           `json:"votes"`
	Index             int64         `json:"index"`
}

// Queue is the ordered sequence of confirmed entries.
// Appends may come from many goroutines; Next is called by a single consumer.
type Queue interface {
	// Add appends an entry and returns it.
	Add(metadata TrackMetadata, manuallyRequested bool) QueueEntry
	// All returns the entries in insertion order, or by votes desc then index asc when voting is set.
	All(voting bool) []QueueEntry
	// Vote changes an entry's vote count.
	Vote(id string, delta int) (QueueEntry, error)
	// Next removes the front entry (vote-ordered when voting is set) and makes it current.
	Next(voting bool) (QueueEntry, bool)
	// Current returns the entry the player picked last.
	Current() (QueueEntry, bool)
	// Len returns the number of waiting entries.
	Len() int
}
