package queue

import (
	"sort"
	"sync"

	"github.com/contre95/jukebox/src/music"
	"github.com/google/uuid"
)

// InMemoryQueue is an in-memory implementation of the music.Queue interface.
type InMemoryQueue struct {
	mu      sync.Mutex
	entries []music.QueueEntry
	current *music.QueueEntry
	next    int64
}

var _ music.Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// Add appends a new entry to the queue.
func (q *InMemoryQueue) Add(metadata music.TrackMetadata, manuallyRequested bool) music.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry := music.QueueEntry{
		ID:                uuid.New().String(),
		Metadata:          metadata,
		ManuallyRequested: manuallyRequested,
		Index:             q.next,
	}
	q.next++
	q.entries = append(q.entries, entry)
	return entry
}

// All returns a copy of the waiting entries in play order.
func (q *InMemoryQueue) All(voting bool) []music.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]music.QueueEntry, len(q.entries))
	copy(entries, q.entries)
	if voting {
		sortByVotes(entries)
	}
	return entries
}

// Vote adds delta to the entry's votes.
func (q *InMemoryQueue) Vote(id string, delta int) (music.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Votes += delta
			return q.entries[i], nil
		}
	}
	return music.QueueEntry{}, music.ErrEntryNotFound
}

// Next removes the entry to play next and makes it current.
func (q *InMemoryQueue) Next(voting bool) (music.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return music.QueueEntry{}, false
	}
	pick := 0
	if voting {
		for i := 1; i < len(q.entries); i++ {
			if before(q.entries[i], q.entries[pick]) {
				pick = i
			}
		}
	}
	entry := q.entries[pick]
	q.entries = append(q.entries[:pick], q.entries[pick+1:]...)
	q.current = &entry
	return entry, true
}

// Current returns the entry most recently taken by Next.
func (q *InMemoryQueue) Current() (music.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return music.QueueEntry{}, false
	}
	return *q.current, true
}

// Len returns the number of waiting entries.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// before orders by votes descending, then insertion index.
func before(a, b music.QueueEntry) bool {
	if a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	return a.Index < b.Index
}

func sortByVotes(entries []music.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return before(entries[i], entries[j])
	})
}
