package music

import (
	"fmt"
	"strings"
	"time"
)

// TrackMetadata describes a resolved, playable track.
type TrackMetadata struct {
	CanonicalURL    string     `json:"url"`
	Artist          string     `json:"artist"`
	Title           string     `json:"title"`
	Duration        int        `json:"duration"` // seconds
	InternalLocator string     `json:"internal_url"`
	Source          SourceKind `json:"source"`
}

// Validate checks the fields the archive and the player rely on.
func (m *TrackMetadata) Validate() error {
	if strings.TrimSpace(m.CanonicalURL) == "" {
		return fmt.Errorf("track url cannot be empty")
	}
	if len(m.CanonicalURL) > 2000 {
		return fmt.Errorf("track url cannot exceed 2000 characters, got %d", len(m.CanonicalURL))
	}
	if strings.TrimSpace(m.InternalLocator) == "" {
		return fmt.Errorf("internal locator cannot be empty: url -> %s", m.CanonicalURL)
	}
	if m.Duration < 0 {
		return fmt.Errorf("duration cannot be negative, got %d", m.Duration)
	}
	return nil
}

// EnsureDefaults applies the fallbacks used when tags are missing.
func (m *TrackMetadata) EnsureDefaults() {
	if strings.TrimSpace(m.Title) == "" {
		m.Title = m.CanonicalURL
	}
	m.Artist = strings.TrimSpace(m.Artist)
}

// FormatDuration renders seconds as [hh:]mm:ss.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "??:??"
	}
	hours, rest := seconds/3600, seconds%3600
	minutes, secs := rest/60, rest%60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// ArchivedTrack is a persistent record of a previously requested track.
type ArchivedTrack struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Artist       string    `json:"artist"`
	Title        string    `json:"title"`
	RequestCount int64     `json:"counter"`
	CreatedAt    time.Time `json:"created"`
}

// FileTags are the tags the pipeline reads from and writes to retrieved media.
type FileTags struct {
	Artist string
	Title  string
}
