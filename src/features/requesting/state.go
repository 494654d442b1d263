package requesting

import (
	"time"

	"github.com/contre95/jukebox/src/music"
)

// StateEntry is one row of the visible queue. Unconfirmed rows are requests
// whose media is still being fetched.
type StateEntry struct {
	ID                string               `json:"id"`
	Confirmed         bool                 `json:"confirmed"`
	Query             string               `json:"query,omitempty"`
	Replaces          string               `json:"replaces,omitempty"`
	Metadata          *music.TrackMetadata `json:"metadata,omitempty"`
	Duration          string               `json:"duration,omitempty"`
	Votes             int                  `json:"votes"`
	ManuallyRequested bool                 `json:"manually_requested"`
}

// State is the snapshot broadcast to observers.
type State struct {
	Current     *music.QueueEntry `json:"current,omitempty"`
	Queue       []StateEntry      `json:"queue"`
	Voting      bool              `json:"voting"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// State reconciles the queue with the placeholder registry. A resolved
// placeholder is removed here and its query is carried by the confirmed entry it
// turned into.
func (s *Service) State() State {
	voting := s.config.Get().Queue.Voting

	s.stateMu.Lock()
	entries := s.queue.All(voting)
	replaces := s.placeholders.TakeResolved()
	pending := s.placeholders.Pending()
	s.stateMu.Unlock()

	state := State{
		Queue:       make([]StateEntry, 0, len(entries)+len(pending)),
		Voting:      voting,
		GeneratedAt: time.Now(),
	}
	if current, ok := s.queue.Current(); ok {
		state.Current = &current
	}
	for _, entry := range entries {
		md := entry.Metadata
		state.Queue = append(state.Queue, StateEntry{
			ID:                entry.ID,
			Confirmed:         true,
			Replaces:          replaces[entry.ID],
			Metadata:          &md,
			Duration:          music.FormatDuration(md.Duration),
			Votes:             entry.Votes,
			ManuallyRequested: entry.ManuallyRequested,
		})
	}
	for _, p := range pending {
		state.Queue = append(state.Queue, StateEntry{
			ID:    p.ID,
			Query: p.Query,
		})
	}
	return state
}
