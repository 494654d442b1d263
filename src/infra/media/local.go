package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/music"
	"github.com/gosimple/unidecode"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".wav":  true,
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

// LocalLibrary serves file:// tracks out of a media directory.
type LocalLibrary struct {
	root string
}

// NewLocalLibrary creates a backend rooted at dir.
func NewLocalLibrary(dir string) (*LocalLibrary, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory %s: %w", dir, err)
	}
	return &LocalLibrary{root: root}, nil
}

func (l *LocalLibrary) Kind() music.SourceKind { return music.SourceLocal }

// Lookup stats a file:// reference. Files outside the media directory are not served.
func (l *LocalLibrary) Lookup(ctx context.Context, ref string) (requesting.CatalogEntry, error) {
	path := filepath.Clean(strings.TrimPrefix(ref, "file://"))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "file is outside the media directory", nil)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "no such file", nil)
	}
	if err != nil {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchRetrieval, "cannot stat file", err)
	}
	if !info.Mode().IsRegular() {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "not a regular file", nil)
	}
	return entryFor(path, info.Size()), nil
}

// Search walks the media directory for the audio file whose path contains every
// word of the query. Shorter paths win.
func (l *LocalLibrary) Search(ctx context.Context, query string) (requesting.CatalogEntry, error) {
	words := normalizeWords(query)
	if len(words) == 0 {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "empty query", nil)
	}

	var matches []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, _ := filepath.Rel(l.root, path)
		haystack := strings.Join(normalizeWords(strings.TrimSuffix(rel, filepath.Ext(rel))), " ")
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				return nil
			}
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchRetrieval, "cannot scan media directory", err)
	}
	if len(matches) == 0 {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "no local file matches "+query, nil)
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return l.Lookup(ctx, "file://"+matches[0])
}

// Retrieve copies the file into the cache.
func (l *LocalLibrary) Retrieve(ctx context.Context, entry requesting.CatalogEntry, dest string, opts requesting.RetrieveOptions) error {
	src, err := os.Open(strings.TrimPrefix(entry.URL, "file://"))
	if err != nil {
		return music.NewFetchError(music.FetchRetrieval, "cannot open local file", err)
	}
	defer src.Close()
	return copyTo(dest, src, entry.SizeBytes, opts)
}

func entryFor(path string, size int64) requesting.CatalogEntry {
	ext := filepath.Ext(path)
	return requesting.CatalogEntry{
		ID:        path,
		URL:       "file://" + path,
		Title:     strings.TrimSuffix(filepath.Base(path), ext),
		SizeBytes: size,
		Extension: strings.TrimPrefix(strings.ToLower(ext), "."),
	}
}

func normalizeWords(s string) []string {
	var words []string
	for _, w := range wordSplit.Split(strings.ToLower(unidecode.Unidecode(s)), -1) {
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
