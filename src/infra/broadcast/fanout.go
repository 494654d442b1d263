package broadcast

import (
	"context"
	"log/slog"

	"github.com/contre95/jukebox/src/features/requesting"
)

// Fanout delivers every snapshot to each target in order. A panicking target
// is logged and skipped.
type Fanout struct {
	targets []requesting.Broadcaster
}

// NewFanout creates a Fanout over the non-nil targets.
func NewFanout(targets ...requesting.Broadcaster) *Fanout {
	f := &Fanout{}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

func (f *Fanout) Broadcast(ctx context.Context, state requesting.State) {
	for _, t := range f.targets {
		f.deliver(ctx, t, state)
	}
}

func (f *Fanout) deliver(ctx context.Context, target requesting.Broadcaster, state requesting.State) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("State broadcaster panicked", "panic", r)
		}
	}()
	target.Broadcast(ctx, state)
}
