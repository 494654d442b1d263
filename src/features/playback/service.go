package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/contre95/jukebox/src/music"
)

const previewSeconds = 30

var ErrNotLocal = errors.New("entry is not stored locally")

// Service serves previews of queued entries whose media sits in the cache.
type Service struct {
	queue music.Queue
}

// NewService creates a new playback service
func NewService(queue music.Queue) *Service {
	return &Service{queue: queue}
}

// PreviewTrackReader limits reading to the first seconds of a file. The file
// stays open until Close, which may be called more than once.
type PreviewTrackReader struct {
	file      *os.File
	remaining int64
	closeOnce sync.Once
	closeErr  error
}

func (r *PreviewTrackReader) Read(p []byte) (n int, err error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err = r.file.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *PreviewTrackReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.file.Close()
	})
	return r.closeErr
}

// Entry finds an entry among the current and waiting ones.
func (s *Service) Entry(entryID string) (music.QueueEntry, error) {
	if current, ok := s.queue.Current(); ok && current.ID == entryID {
		return current, nil
	}
	for _, entry := range s.queue.All(false) {
		if entry.ID == entryID {
			return entry, nil
		}
	}
	return music.QueueEntry{}, music.ErrEntryNotFound
}

// Preview returns a reader over the first seconds of an entry's cached media and its format.
func (s *Service) Preview(entryID string) (io.ReadCloser, string, error) {
	entry, err := s.Entry(entryID)
	if err != nil {
		return nil, "", err
	}
	locator := entry.Metadata.InternalLocator
	if !strings.HasPrefix(locator, "file://") {
		return nil, "", ErrNotLocal
	}
	path := strings.TrimPrefix(locator, "file://")

	file, err := os.Open(path)
	if err != nil {
		slog.Error("Failed to open cached media", "path", path, "error", err)
		return nil, "", fmt.Errorf("failed to open cached media: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, "", fmt.Errorf("failed to get file info: %w", err)
	}

	previewSize := info.Size()
	if d := int64(entry.Metadata.Duration); d > previewSeconds {
		previewSize = info.Size() / d * previewSeconds
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return &PreviewTrackReader{file: file, remaining: previewSize}, format, nil
}
