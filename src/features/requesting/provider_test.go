package requesting

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	tracks map[string]CatalogEntry
}

func (c *fakeCatalog) Lookup(ctx context.Context, ref string) (CatalogEntry, error) {
	entry, ok := c.tracks[ref]
	if !ok {
		return CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "no such track", nil)
	}
	return entry, nil
}

func (c *fakeCatalog) Search(ctx context.Context, query string) (CatalogEntry, error) {
	for _, entry := range c.tracks {
		if entry.Title == query {
			return entry, nil
		}
	}
	return CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "no match", nil)
}

func TestStreamingProvider(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string]CatalogEntry{
		"3135556": {ID: "3135556", URL: "https://www.deezer.com/fr/track/3135556", Artist: "Daft Punk", Title: "Harder", Duration: 224},
	}}
	p := NewStreamingProvider(Identifier{Kind: music.SourceDeezer, Ref: "3135556", Query: "deezer:track:3135556"}, catalog)

	cached, err := p.CheckCached(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	_, err = p.Metadata(context.Background())
	assert.Error(t, err)

	require.NoError(t, p.CheckFetchable(context.Background()))
	enqueued := 0
	require.NoError(t, p.Fetch(context.Background(), func(ctx context.Context) error {
		enqueued++
		return nil
	}))
	assert.Equal(t, 1, enqueued)

	md, err := p.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://www.deezer.com/track/3135556", md.CanonicalURL)
	assert.Equal(t, "deezer:track:3135556", md.InternalLocator)
	assert.Equal(t, music.SourceDeezer, md.Source)
	assert.Equal(t, 224, md.Duration)
}

func TestStreamingProvider_SearchMiss(t *testing.T) {
	p := NewStreamingProvider(Identifier{Kind: music.SourceDeezer, Query: "nothing"}, &fakeCatalog{})
	err := p.CheckFetchable(context.Background())
	fe, ok := music.IsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, music.FetchNotFound, fe.Reason)
}

func TestDownloadProvider_IgnoresPartialFiles(t *testing.T) {
	dir := t.TempDir()
	url := "https://media.example.com/songs/x.mp3"
	key := CacheKey(url)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".123.part"), []byte("half"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".ogg"), nil, 0644))

	backend := newFakeBackend(music.SourceRemote)
	p := NewDownloadProvider(Identifier{Kind: music.SourceRemote, Ref: url, Query: url}, backend, nil, nil, DownloadOptions{CacheDir: dir})
	cached, err := p.CheckCached(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".mp3"), []byte("audio"), 0644))
	cached, err = p.CheckCached(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "file://"+filepath.Join(dir, key+".mp3"), p.InternalLocator())
}

func TestDownloadProvider_ExtensionFallbacks(t *testing.T) {
	backend := newFakeBackend(music.SourceRemote)
	entry := CatalogEntry{URL: "https://media.example.com/stream"}
	p := NewDownloadProvider(Identifier{Ref: entry.URL}, backend, nil, nil, DownloadOptions{DefaultExtension: ".MP3"})
	p.entry = &entry
	assert.Equal(t, "mp3", p.extension())

	entry.Extension = "flac"
	assert.Equal(t, "flac", p.extension())

	p.opts.DefaultExtension = ""
	entry.Extension = ""
	assert.Equal(t, "bin", p.extension())
}

type fakeTags struct {
	tags    music.FileTags
	written []music.FileTags
}

func (f *fakeTags) ReadFileTags(ctx context.Context, filePath string) (music.FileTags, error) {
	return f.tags, nil
}

func (f *fakeTags) FillMissingTags(ctx context.Context, filePath string, tags music.FileTags) error {
	f.written = append(f.written, tags)
	return nil
}

func TestDownloadProvider_MetadataPrefersFileTags(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(music.SourceRemote)
	entry := remoteEntry("tagged", 10)
	backend.add(entry)
	tags := &fakeTags{tags: music.FileTags{Title: "Real Title"}}

	p := NewDownloadProvider(Identifier{Kind: music.SourceRemote, Ref: entry.URL, Query: entry.URL}, backend, tags, tags, DownloadOptions{CacheDir: dir})
	require.NoError(t, p.CheckFetchable(context.Background()))
	require.NoError(t, p.Fetch(context.Background(), func(ctx context.Context) error { return nil }))

	md, err := p.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Real Title", md.Title)
	assert.Equal(t, "Artist tagged", md.Artist)
	assert.Equal(t, 200, md.Duration)
	require.Len(t, tags.written, 1)
	assert.Equal(t, music.FileTags{Artist: "Artist tagged", Title: "Title tagged"}, tags.written[0])
}

func TestProviderFactory_Build(t *testing.T) {
	cfg := config.NewManager(testConfig(t.TempDir()))
	catalog := &fakeCatalog{}
	factory := NewProviderFactory(cfg, nil, nil, nil, catalog, newFakeBackend(music.SourceRemote), newFakeBackend(music.SourceLocal))

	p, err := factory.Build(context.Background(), Request{Query: "deezer:track:1"})
	require.NoError(t, err)
	assert.Equal(t, music.SourceDeezer, p.Kind())

	p, err = factory.Build(context.Background(), Request{Query: "ignored text", URL: "https://media.example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, music.SourceRemote, p.Kind())
	assert.Equal(t, "https://media.example.com/a.mp3", p.Query())

	_, err = factory.Build(context.Background(), Request{URL: "not a url"})
	assert.ErrorIs(t, err, music.ErrUnsupportedSource)

	cfg.Get().Sources.Remote.Enabled = false
	_, err = factory.Build(context.Background(), Request{URL: "https://media.example.com/a.mp3"})
	assert.ErrorIs(t, err, music.ErrUnsupportedSource)
}
