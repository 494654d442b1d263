package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/contre95/jukebox/src/music"
)

// PlaceholderRegistry is an in-memory, insertion-ordered music.PlaceholderRegistry.
type PlaceholderRegistry struct {
	mu    sync.Mutex
	order []string
	items map[string]*music.Placeholder
}

var _ music.PlaceholderRegistry = (*PlaceholderRegistry)(nil)

func NewPlaceholderRegistry() *PlaceholderRegistry {
	return &PlaceholderRegistry{items: make(map[string]*music.Placeholder)}
}

func (r *PlaceholderRegistry) Add(id, query string) music.Placeholder {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &music.Placeholder{ID: id, Query: query, CreatedAt: time.Now()}
	if _, exists := r.items[id]; !exists {
		r.order = append(r.order, id)
	}
	r.items[id] = p
	return *p
}

func (r *PlaceholderRegistry) Resolve(id, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return music.ErrPlaceholderNotFound
	}
	if p.Resolved() {
		return fmt.Errorf("placeholder %s already resolved to %s", id, p.ResolvedEntryID)
	}
	p.ResolvedEntryID = entryID
	return nil
}

func (r *PlaceholderRegistry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.Resolved() {
		return false
	}
	r.removeLocked(id)
	return true
}

func (r *PlaceholderRegistry) TakeResolved() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken := make(map[string]string)
	kept := r.order[:0]
	for _, id := range r.order {
		p := r.items[id]
		if p.Resolved() {
			taken[p.ResolvedEntryID] = p.Query
			delete(r.items, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return taken
}

func (r *PlaceholderRegistry) Pending() []music.Placeholder {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make([]music.Placeholder, 0, len(r.order))
	for _, id := range r.order {
		if p := r.items[id]; !p.Resolved() {
			pending = append(pending, *p)
		}
	}
	return pending
}

func (r *PlaceholderRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *PlaceholderRegistry) removeLocked(id string) {
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
