package media

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireReason(t *testing.T, err error, reason music.FetchReason) {
	t.Helper()
	fe, ok := music.IsFetchError(err)
	require.True(t, ok, "expected a fetch error, got %v", err)
	assert.Equal(t, reason, fe.Reason)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLocalLibrary_LookupAndRetrieve(t *testing.T) {
	root := t.TempDir()
	song := filepath.Join(root, "Daft Punk", "One More Time.mp3")
	writeFile(t, song, "audio-bytes")
	lib, err := NewLocalLibrary(root)
	require.NoError(t, err)

	entry, err := lib.Lookup(context.Background(), "file://"+song)
	require.NoError(t, err)
	assert.Equal(t, "file://"+song, entry.URL)
	assert.Equal(t, "One More Time", entry.Title)
	assert.Equal(t, int64(11), entry.SizeBytes)
	assert.Equal(t, "mp3", entry.Extension)

	dest := filepath.Join(t.TempDir(), "out.part")
	var last int64
	require.NoError(t, lib.Retrieve(context.Background(), entry, dest, requesting.RetrieveOptions{
		Progress: func(downloaded, total int64) {
			last = downloaded
			assert.Equal(t, int64(11), total)
		},
	}))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
	assert.Equal(t, int64(11), last)
}

func TestLocalLibrary_LookupRejects(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "x.mp3")
	writeFile(t, outside, "x")
	lib, err := NewLocalLibrary(root)
	require.NoError(t, err)

	_, err = lib.Lookup(context.Background(), "file://"+outside)
	requireReason(t, err, music.FetchNotFound)
	_, err = lib.Lookup(context.Background(), "file://"+filepath.Join(root, "missing.mp3"))
	requireReason(t, err, music.FetchNotFound)
	_, err = lib.Lookup(context.Background(), "file://"+root)
	requireReason(t, err, music.FetchNotFound)
}

func TestLocalLibrary_Search(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Sigur Rós", "Hoppípolla.flac"), "a")
	writeFile(t, filepath.Join(root, "Sigur Rós", "Live", "Hoppípolla (live).flac"), "b")
	writeFile(t, filepath.Join(root, "Sigur Rós", "notes.txt"), "c")
	lib, err := NewLocalLibrary(root)
	require.NoError(t, err)

	entry, err := lib.Search(context.Background(), "sigur ros hoppipolla")
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(root, "Sigur Rós", "Hoppípolla.flac"), entry.URL)

	_, err = lib.Search(context.Background(), "notes")
	requireReason(t, err, music.FetchNotFound)
	_, err = lib.Search(context.Background(), "  ")
	requireReason(t, err, music.FetchNotFound)
}

func TestRemoteDownloader(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/songs/x.mp3":
			if r.Method == http.MethodGet {
				gets.Add(1)
			}
			w.Header().Set("Content-Length", "5")
			w.Write([]byte("hello"))
		case "/liar.mp3":
			if r.Method == http.MethodHead {
				w.Header().Set("Content-Length", "5")
				return
			}
			w.Write([]byte(strings.Repeat("x", 64)))
		case "/broken.mp3":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	r := NewRemoteDownloader(config.RemoteSource{TimeoutSeconds: 5})

	entry, err := r.Lookup(context.Background(), srv.URL+"/songs/x.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.SizeBytes)
	assert.Equal(t, "x", entry.Title)
	assert.Equal(t, "mp3", entry.Extension)
	assert.Equal(t, int32(0), gets.Load())

	dest := filepath.Join(t.TempDir(), "x.part")
	require.NoError(t, r.Retrieve(context.Background(), entry, dest, requesting.RetrieveOptions{MaxBytes: 5}))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	liar, err := r.Lookup(context.Background(), srv.URL+"/liar.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(5), liar.SizeBytes)
	liarDest := filepath.Join(t.TempDir(), "liar.part")
	err = r.Retrieve(context.Background(), liar, liarDest, requesting.RetrieveOptions{MaxBytes: 10})
	requireReason(t, err, music.FetchTooLarge)
	assert.NoFileExists(t, liarDest)

	_, err = r.Lookup(context.Background(), srv.URL+"/missing.mp3")
	requireReason(t, err, music.FetchNotFound)
	_, err = r.Lookup(context.Background(), srv.URL+"/broken.mp3")
	requireReason(t, err, music.FetchRetrieval)
	_, err = r.Search(context.Background(), "anything")
	requireReason(t, err, music.FetchNotFound)
}

func TestDeezerCatalog(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/track/3135556":
			fmt.Fprint(w, `{"id":3135556,"title":"Harder, Better, Faster, Stronger","duration":224,"link":"https://www.deezer.com/fr/track/3135556","artist":{"name":"Daft Punk"}}`)
		case r.URL.Path == "/search" && r.URL.Query().Get("q") == "harder better":
			fmt.Fprint(w, `{"data":[{"id":3135556,"title":"Harder, Better, Faster, Stronger","duration":224,"artist":{"name":"Daft Punk"}}],"total":1}`)
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"data":[],"total":0}`)
		default:
			fmt.Fprint(w, `{"error":{"type":"DataException","message":"no data","code":800}}`)
		}
	}))
	defer srv.Close()
	catalog := NewDeezerCatalog(config.DeezerSource{BaseURL: srv.URL + "/", RateLimit: 1000})

	entry, err := catalog.Lookup(context.Background(), "3135556")
	require.NoError(t, err)
	assert.Equal(t, "3135556", entry.ID)
	assert.Equal(t, "https://www.deezer.com/track/3135556", entry.URL)
	assert.Equal(t, "Daft Punk", entry.Artist)
	assert.Equal(t, 224, entry.Duration)

	entry, err = catalog.Search(context.Background(), "harder better")
	require.NoError(t, err)
	assert.Equal(t, "3135556", entry.ID)

	_, err = catalog.Search(context.Background(), "zzz")
	requireReason(t, err, music.FetchNotFound)
	_, err = catalog.Lookup(context.Background(), "1")
	requireReason(t, err, music.FetchNotFound)
	assert.Equal(t, int32(4), calls.Load())
}

func TestDeezerCatalog_RateLimitHonoursContext(t *testing.T) {
	catalog := NewDeezerCatalog(config.DeezerSource{BaseURL: "http://127.0.0.1:1", RateLimit: 0.001})
	catalog.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := catalog.Lookup(ctx, "1")
	requireReason(t, err, music.FetchRetrieval)
}
