package playback

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/infra/queue"
	"github.com/contre95/jukebox/src/music"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSignal_CountsPermits(t *testing.T) {
	s := NewSignal()
	s.Release()
	s.Release()
	assert.Equal(t, 2, s.Permits())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))
	assert.Equal(t, 0, s.Permits())
}

func TestSignal_AcquireWaitsForRelease(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewSignal()

	done := make(chan error, 1)
	go func() { done <- s.Acquire(context.Background()) }()

	select {
	case <-done:
		t.Fatal("acquired without a permit")
	case <-time.After(20 * time.Millisecond):
	}
	s.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("release did not wake the waiter")
	}
	assert.Equal(t, 0, s.Permits())
}

func TestSignal_AcquireHonoursContext(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(ctx), context.DeadlineExceeded)
}

func TestSignal_ConcurrentReleases(t *testing.T) {
	s := NewSignal()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Permits())
}

// recordingEngine blocks each play until ctx is cancelled or release receives.
type recordingEngine struct {
	mu      sync.Mutex
	played  []string
	release chan struct{}
}

func (e *recordingEngine) Play(ctx context.Context, entry music.QueueEntry) error {
	e.mu.Lock()
	e.played = append(e.played, entry.Metadata.Title)
	e.mu.Unlock()
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *recordingEngine) titles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.played...)
}

func TestPlayer_PlaysInOrderAndSkips(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := queue.NewInMemoryQueue()
	signal := NewSignal()
	engine := &recordingEngine{release: make(chan struct{})}
	cfg := config.NewManager(&config.Config{})
	var changes sync.WaitGroup
	changes.Add(2)
	player := NewPlayer(q, signal, engine, cfg, func(ctx context.Context) { changes.Done() })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		player.Run(ctx)
	}()

	for _, title := range []string{"first", "second"} {
		q.Add(music.TrackMetadata{CanonicalURL: "u:" + title, Title: title, InternalLocator: "x"}, true)
		signal.Release()
	}

	require.Eventually(t, func() bool { return len(engine.titles()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, player.Skip())
	require.Eventually(t, func() bool { return len(engine.titles()) == 2 }, 2*time.Second, 5*time.Millisecond)
	changes.Wait()
	assert.Equal(t, []string{"first", "second"}, engine.titles())

	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "second", current.Metadata.Title)
	assert.Equal(t, 0, q.Len())

	cancel()
	<-stopped
	assert.False(t, player.Skip())
}

func TestLogEngine_CapsDuration(t *testing.T) {
	engine := LogEngine{MaxPlay: 10 * time.Millisecond}
	start := time.Now()
	require.NoError(t, engine.Play(context.Background(), music.QueueEntry{Metadata: music.TrackMetadata{Duration: 300}}))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 600)), 0644))

	q := queue.NewInMemoryQueue()
	long := q.Add(music.TrackMetadata{CanonicalURL: "u1", Title: "long", Duration: 60, InternalLocator: "file://" + path}, true)
	stream := q.Add(music.TrackMetadata{CanonicalURL: "u2", Title: "stream", InternalLocator: "deezer:track:1"}, true)
	service := NewService(q)

	reader, format, err := service.Preview(long.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "mp3", format)
	assert.Len(t, data, 300)
	_, err = reader.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close(), "closing twice is harmless")

	_, _, err = service.Preview(stream.ID)
	assert.ErrorIs(t, err, ErrNotLocal)
	_, _, err = service.Preview("missing")
	assert.ErrorIs(t, err, music.ErrEntryNotFound)

	app := fiber.New()
	RegisterRoutes(app, NewHandler(service, NewPlayer(q, NewSignal(), LogEngine{}, config.NewManager(&config.Config{}), nil)))
	resp, err := app.Test(httptest.NewRequest("GET", "/playback/entries/"+long.ID+"/preview", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, body, 300)

	resp, err = app.Test(httptest.NewRequest("GET", "/playback/entries/"+stream.ID+"/preview", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
