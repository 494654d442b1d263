package tag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/contre95/jukebox/src/music"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// TagWriter fills in missing tags on retrieved media so later reads get a usable title.
type TagWriter struct{}

// NewTagWriter creates a new TagWriter.
func NewTagWriter() *TagWriter {
	return &TagWriter{}
}

// FillMissingTags writes the given artist and title into the file, keeping any
// value the file already carries. Formats other than mp3 and flac are left untouched.
func (t *TagWriter) FillMissingTags(ctx context.Context, filePath string, tags music.FileTags) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return t.tagMP3(filePath, tags)
	case ".flac":
		return t.tagFLAC(filePath, tags)
	default:
		slog.Debug("Skipping tag write for unsupported format", "path", filePath, "format", ext)
		return nil
	}
}

// tagMP3 handles MP3 tagging using id3v2.
func (t *TagWriter) tagMP3(filePath string, tags music.FileTags) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file for tagging: %w", err)
	}
	defer tag.Close()

	changed := false
	if strings.TrimSpace(tag.Title()) == "" && tags.Title != "" {
		tag.SetTitle(tags.Title)
		changed = true
	}
	if strings.TrimSpace(tag.Artist()) == "" && tags.Artist != "" {
		tag.SetArtist(tags.Artist)
		changed = true
	}
	if !changed {
		return nil
	}
	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}
	slog.Debug("Filled MP3 tags", "path", filePath, "title", tags.Title, "artist", tags.Artist)
	return nil
}

// tagFLAC handles FLAC tagging using Vorbis comments.
func (t *TagWriter) tagFLAC(filePath string, tags music.FileTags) error {
	f, err := goflac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	var vorbisComment *flacvorbis.MetaDataBlockVorbisComment
	commentIndex := -1
	for idx, meta := range f.Meta {
		if meta.Type == goflac.VorbisComment {
			vorbisComment, err = flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return fmt.Errorf("failed to parse Vorbis comment: %w", err)
			}
			commentIndex = idx
			break
		}
	}
	if vorbisComment == nil {
		vorbisComment = flacvorbis.New()
	}

	changed := false
	fill := func(field, value string) error {
		if value == "" {
			return nil
		}
		existing, err := vorbisComment.Get(field)
		if err != nil {
			return fmt.Errorf("failed to read %s comment: %w", field, err)
		}
		if len(existing) > 0 && strings.TrimSpace(existing[0]) != "" {
			return nil
		}
		changed = true
		return vorbisComment.Add(field, value)
	}
	if err := fill(flacvorbis.FIELD_TITLE, tags.Title); err != nil {
		return err
	}
	if err := fill(flacvorbis.FIELD_ARTIST, tags.Artist); err != nil {
		return err
	}
	if !changed {
		return nil
	}

	commentMeta := vorbisComment.Marshal()
	if commentIndex >= 0 {
		f.Meta[commentIndex] = &commentMeta
	} else {
		f.Meta = append(f.Meta, &commentMeta)
	}
	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	slog.Debug("Filled FLAC tags", "path", filePath, "title", tags.Title, "artist", tags.Artist)
	return nil
}
