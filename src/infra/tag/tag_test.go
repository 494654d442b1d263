package tag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Longer than an ID3v1 block so readers can seek to where one would be.
var untaggedAudio = strings.Repeat("not really audio ", 16)

func writeUntagged(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(untaggedAudio), 0644))
	return path
}

func TestTagWriter_FillsMissingMP3Tags(t *testing.T) {
	ctx := context.Background()
	path := writeUntagged(t, "song.mp3")

	writer := NewTagWriter()
	require.NoError(t, writer.FillMissingTags(ctx, path, music.FileTags{Artist: "Artist", Title: "Title"}))

	tags, err := NewTagReader().ReadFileTags(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, music.FileTags{Artist: "Artist", Title: "Title"}, tags)

	// Existing values survive a second fill.
	require.NoError(t, writer.FillMissingTags(ctx, path, music.FileTags{Artist: "Other", Title: "Other"}))
	tags, err = NewTagReader().ReadFileTags(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Title", tags.Title)
	assert.Equal(t, "Artist", tags.Artist)
}

func TestTagWriter_SkipsUnknownFormats(t *testing.T) {
	path := writeUntagged(t, "song.opus")
	require.NoError(t, NewTagWriter().FillMissingTags(context.Background(), path, music.FileTags{Title: "x"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, untaggedAudio, string(data))
}

func TestTagReader_UntaggedFile(t *testing.T) {
	path := writeUntagged(t, "plain.mp3")
	tags, err := NewTagReader().ReadFileTags(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, tags.Title)
}

func TestTagReader_MissingFile(t *testing.T) {
	_, err := NewTagReader().ReadFileTags(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
	assert.Error(t, err)
}
