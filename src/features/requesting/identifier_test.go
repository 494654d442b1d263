package requesting

import (
	"strings"
	"testing"

	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierParser_Parse(t *testing.T) {
	parser := IdentifierParser{RemoteHosts: []string{"media.example.com"}, DefaultKind: music.SourceLocal}

	tests := []struct {
		name string
		text string
		kind music.SourceKind
		ref  string
	}{
		{"deezer uri", "deezer:track:3135556", music.SourceDeezer, "3135556"},
		{"deezer url", "https://www.deezer.com/track/3135556", music.SourceDeezer, "3135556"},
		{"localized deezer url", "https://deezer.com/fr/track/3135556?utm=x", music.SourceDeezer, "3135556"},
		{"file url", "file:///music/a%20song.mp3", music.SourceLocal, "file:///music/a song.mp3"},
		{"file url is cleaned", "file:///music/../music/b.mp3", music.SourceLocal, "file:///music/b.mp3"},
		{"remote url", "https://media.example.com/songs/x.mp3#t=10", music.SourceRemote, "https://media.example.com/songs/x.mp3"},
		{"remote host is case insensitive", "http://MEDIA.example.com/x.ogg", music.SourceRemote, "http://MEDIA.example.com/x.ogg"},
		{"free text", "  daft punk  ", music.SourceLocal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, err := parser.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ident.Kind)
			assert.Equal(t, tt.ref, ident.Ref)
			assert.Equal(t, tt.ref == "", ident.IsQuery())
		})
	}
}

func TestIdentifierParser_Rejects(t *testing.T) {
	parser := IdentifierParser{RemoteHosts: []string{"media.example.com"}, DefaultKind: music.SourceLocal}
	for _, text := range []string{
		"spotify:track:4uLU6hMCjMI75M1A2tKUQC",
		"https://elsewhere.example.com/x.mp3",
		"ftp://media.example.com/x.mp3",
		"file://relative/x.mp3",
	} {
		_, err := parser.Parse(text)
		assert.ErrorIs(t, err, music.ErrUnsupportedSource, text)
	}

	_, err := parser.Parse("   ")
	assert.Error(t, err)

	_, err = IdentifierParser{}.Parse("some words")
	assert.ErrorIs(t, err, music.ErrUnsupportedSource)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://media.example.com/songs/Café%20del%20Mar.mp3")
	assert.Regexp(t, `^cafe_del_mar-[0-9a-f]{8}$`, a)
	assert.Equal(t, a, CacheKey("https://media.example.com/songs/Café%20del%20Mar.mp3"))
	assert.NotEqual(t, a, CacheKey("https://media.example.com/other/Café%20del%20Mar.mp3"))
	assert.Regexp(t, `^[0-9a-f]{8}$`, CacheKey("https://media.example.com/"))
	long := CacheKey("https://media.example.com/" + strings.Repeat("a", 100) + ".mp3")
	assert.Len(t, long, 64+1+8)
}
