package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/music"
)

// Engine plays one entry to the end or until ctx is cancelled.
type Engine interface {
	Play(ctx context.Context, entry music.QueueEntry) error
}

// LogEngine stands in for an audio output: it logs the entry and waits for its
// duration, capped at MaxPlay.
type LogEngine struct {
	MaxPlay time.Duration
}

func (e LogEngine) Play(ctx context.Context, entry music.QueueEntry) error {
	wait := time.Duration(entry.Metadata.Duration) * time.Second
	if e.MaxPlay > 0 && (wait <= 0 || wait > e.MaxPlay) {
		wait = e.MaxPlay
	}
	slog.Info("Now playing",
		"entryID", entry.ID,
		"title", entry.Metadata.Title,
		"artist", entry.Metadata.Artist,
		"locator", entry.Metadata.InternalLocator,
		"duration", music.FormatDuration(entry.Metadata.Duration))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Player consumes the queue. It takes one readiness permit per entry so it never
// looks at the queue before an append has completed.
type Player struct {
	queue    music.Queue
	signal   *Signal
	engine   Engine
	config   *config.Manager
	onChange func(ctx context.Context)

	mu   sync.Mutex
	skip context.CancelFunc
}

// NewPlayer creates a player. onChange runs whenever the current entry changes and may be nil.
func NewPlayer(queue music.Queue, signal *Signal, engine Engine, cfg *config.Manager, onChange func(ctx context.Context)) *Player {
	return &Player{
		queue:    queue,
		signal:   signal,
		engine:   engine,
		config:   cfg,
		onChange: onChange,
	}
}

// Run plays entries until ctx is done.
func (p *Player) Run(ctx context.Context) error {
	slog.Info("Player started")
	for {
		if err := p.signal.Acquire(ctx); err != nil {
			slog.Info("Player stopped")
			return nil
		}
		entry, ok := p.queue.Next(p.config.Get().Queue.Voting)
		if !ok {
			slog.Warn("Readiness permit without a queue entry")
			continue
		}
		p.notify(ctx)

		playCtx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.skip = cancel
		p.mu.Unlock()

		err := p.engine.Play(playCtx, entry)

		p.mu.Lock()
		p.skip = nil
		p.mu.Unlock()
		cancel()

		switch {
		case ctx.Err() != nil:
			slog.Info("Player stopped")
			return nil
		case errors.Is(err, context.Canceled):
			slog.Info("Entry skipped", "entryID", entry.ID)
		case err != nil:
			slog.Error("Playback failed", "entryID", entry.ID, "error", err)
		}
	}
}

// Skip stops the entry being played. It reports whether anything was playing.
func (p *Player) Skip() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.skip == nil {
		return false
	}
	p.skip()
	return true
}

func (p *Player) notify(ctx context.Context) {
	if p.onChange != nil {
		p.onChange(ctx)
	}
}
