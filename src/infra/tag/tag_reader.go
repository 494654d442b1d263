package tag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/contre95/jukebox/src/music"
	"github.com/dhowden/tag"
)

// TagReader reads artist and title from audio files using the dhowden/tag library.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() *TagReader {
	return &TagReader{}
}

// ReadFileTags reads the tags of the file at filePath. Files without a
// recognised tag block return empty tags and no error.
func (r *TagReader) ReadFileTags(ctx context.Context, filePath string) (music.FileTags, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return music.FileTags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	tags, err := tag.ReadFrom(file)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return music.FileTags{}, nil
	}
	if err != nil {
		return music.FileTags{}, fmt.Errorf("failed to read tags: %w", err)
	}

	artist := tags.Artist()
	if strings.TrimSpace(artist) == "" {
		artist = tags.AlbumArtist()
	}
	return music.FileTags{
		Artist: strings.TrimSpace(artist),
		Title:  strings.TrimSpace(tags.Title()),
	}, nil
}
