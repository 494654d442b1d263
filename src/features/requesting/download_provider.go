package requesting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/contre95/jukebox/src/music"
)

const partialSuffix = ".part"

// DownloadOptions are the cache settings a DownloadProvider works with.
type DownloadOptions struct {
	CacheDir string
	// MaxBytes rejects media above this size when it is not cached yet. 0 disables the check.
	MaxBytes         int64
	DefaultExtension string
}

// DownloadProvider serves tracks whose media is stored in the local cache before playback.
type DownloadProvider struct {
	ident    Identifier
	backend  MediaBackend
	reader   TagReader
	writer   TagWriter
	opts     DownloadOptions
	progress func(downloaded, total int64)

	canonicalURL string
	entry        *CatalogEntry
	cachedPath   string
	metadata     *music.TrackMetadata
}

func NewDownloadProvider(ident Identifier, backend MediaBackend, reader TagReader, writer TagWriter, opts DownloadOptions) *DownloadProvider {
	p := &DownloadProvider{
		ident:   ident,
		backend: backend,
		reader:  reader,
		writer:  writer,
		opts:    opts,
	}
	if !ident.IsQuery() {
		p.canonicalURL = ident.Ref
	}
	return p
}

func (p *DownloadProvider) Kind() music.SourceKind { return p.backend.Kind() }

func (p *DownloadProvider) Query() string { return p.ident.Query }

// SetProgress installs a callback for retrieval progress.
func (p *DownloadProvider) SetProgress(fn func(downloaded, total int64)) {
	p.progress = fn
}

// CheckCached looks for a cached file for the canonical URL. Queries are never
// cached until CheckFetchable has resolved them.
func (p *DownloadProvider) CheckCached(ctx context.Context) (bool, error) {
	if p.canonicalURL == "" {
		return false, nil
	}
	cached, err := p.findCached()
	if err != nil {
		return false, err
	}
	p.cachedPath = cached
	return cached != "", nil
}

func (p *DownloadProvider) findCached() (string, error) {
	pattern := filepath.Join(p.opts.CacheDir, CacheKey(p.canonicalURL)+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to scan cache: %w", err)
	}
	for _, match := range matches {
		if strings.HasSuffix(match, partialSuffix) {
			continue
		}
		info, err := os.Stat(match)
		if err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return match, nil
		}
	}
	return "", nil
}

// CheckFetchable resolves the catalog entry and enforces the download size limit.
func (p *DownloadProvider) CheckFetchable(ctx context.Context) error {
	var entry CatalogEntry
	var err error
	if p.canonicalURL != "" {
		entry, err = p.backend.Lookup(ctx, p.canonicalURL)
	} else {
		entry, err = p.backend.Search(ctx, p.ident.Query)
	}
	if err != nil {
		return asFetchError(err)
	}
	if entry.URL == "" {
		entry.URL = p.canonicalURL
	}
	if entry.URL == "" {
		return music.NewFetchError(music.FetchNotFound, "source returned no url", nil)
	}
	p.canonicalURL = entry.URL
	p.entry = &entry

	if p.cachedPath == "" {
		cached, err := p.findCached()
		if err != nil {
			return music.NewFetchError(music.FetchRetrieval, "cache unavailable", err)
		}
		p.cachedPath = cached
	}
	if p.cachedPath != "" || p.opts.MaxBytes <= 0 {
		return nil
	}
	if entry.SizeBytes < 0 {
		return music.NewFetchError(music.FetchTooLarge, "media size is unknown", nil)
	}
	if entry.SizeBytes > p.opts.MaxBytes {
		return music.NewFetchError(music.FetchTooLarge,
			fmt.Sprintf("%.1f MB exceeds the %d MB limit", float64(entry.SizeBytes)/(1024*1024), p.opts.MaxBytes/(1024*1024)), nil)
	}
	return nil
}

// Fetch retrieves the media into the cache unless it is already there, then enqueues.
func (p *DownloadProvider) Fetch(ctx context.Context, enqueue EnqueueFunc) error {
	if p.cachedPath == "" {
		if p.entry == nil {
			return fmt.Errorf("fetch before the track was resolved: %s", p.ident.Query)
		}
		// Another request for the same track may have finished first.
		if cached, err := p.findCached(); err == nil && cached != "" {
			p.cachedPath = cached
		} else if err := p.retrieve(ctx); err != nil {
			return err
		}
	}
	return enqueue(ctx)
}

func (p *DownloadProvider) retrieve(ctx context.Context) error {
	if err := os.MkdirAll(p.opts.CacheDir, 0755); err != nil {
		return music.NewFetchError(music.FetchRetrieval, "cannot create cache directory", err)
	}
	key := CacheKey(p.canonicalURL)
	dest := filepath.Join(p.opts.CacheDir, key+"."+p.extension())
	part, err := os.CreateTemp(p.opts.CacheDir, key+".*"+partialSuffix)
	if err != nil {
		return music.NewFetchError(music.FetchRetrieval, "cannot create cache file", err)
	}
	tmp := part.Name()
	part.Close()

	slog.Debug("Retrieving media", "url", p.canonicalURL, "source", p.Kind(), "dest", dest)
	progress := p.progress
	if progress == nil {
		progress = func(int64, int64) {}
	}
	if err := p.backend.Retrieve(ctx, *p.entry, tmp, RetrieveOptions{MaxBytes: p.opts.MaxBytes, Progress: progress}); err != nil {
		os.Remove(tmp)
		return asFetchError(err)
	}

	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s", music.ErrRetrieveIncomplete, p.canonicalURL)
	}
	if p.opts.MaxBytes > 0 && info.Size() > p.opts.MaxBytes {
		os.Remove(tmp)
		return music.NewFetchError(music.FetchTooLarge, fmt.Sprintf("retrieved %d bytes, limit is %d", info.Size(), p.opts.MaxBytes), nil)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", music.ErrRetrieveIncomplete, p.canonicalURL, err)
	}
	p.cachedPath = dest

	if p.writer != nil {
		tags := music.FileTags{Artist: p.entry.Artist, Title: p.entry.Title}
		if err := p.writer.FillMissingTags(ctx, dest, tags); err != nil {
			slog.Warn("Failed to fill tags on retrieved media", "path", dest, "error", err)
		}
	}
	slog.Info("Media retrieved", "url", p.canonicalURL, "path", dest, "size", info.Size())
	return nil
}

func (p *DownloadProvider) extension() string {
	ext := strings.TrimPrefix(p.entry.Extension, ".")
	if ext == "" {
		if u, err := url.Parse(p.canonicalURL); err == nil {
			ext = strings.TrimPrefix(path.Ext(u.Path), ".")
		}
	}
	if ext == "" {
		ext = strings.TrimPrefix(p.opts.DefaultExtension, ".")
	}
	if ext == "" {
		ext = "bin"
	}
	return strings.ToLower(ext)
}

// Metadata reads the tags of the cached file, falling back to the catalog entry.
func (p *DownloadProvider) Metadata(ctx context.Context) (music.TrackMetadata, error) {
	if p.metadata != nil {
		return *p.metadata, nil
	}
	if p.cachedPath == "" {
		return music.TrackMetadata{}, fmt.Errorf("media not available for %s", p.ident.Query)
	}

	var tags music.FileTags
	if p.reader != nil {
		read, err := p.reader.ReadFileTags(ctx, p.cachedPath)
		if err != nil {
			slog.Warn("Failed to read tags, using fallbacks", "path", p.cachedPath, "error", err)
		} else {
			tags = read
		}
	}
	md := music.TrackMetadata{
		CanonicalURL:    p.canonicalURL,
		Artist:          tags.Artist,
		Title:           tags.Title,
		InternalLocator: p.InternalLocator(),
		Source:          p.Kind(),
	}
	if p.entry != nil {
		md.Duration = p.entry.Duration
		if md.Artist == "" {
			md.Artist = p.entry.Artist
		}
		if md.Title == "" {
			md.Title = p.entry.Title
		}
	}
	md.EnsureDefaults()
	if err := md.Validate(); err != nil {
		return music.TrackMetadata{}, err
	}
	p.metadata = &md
	return md, nil
}

func (p *DownloadProvider) InternalLocator() string {
	if p.cachedPath == "" {
		return ""
	}
	abs, err := filepath.Abs(p.cachedPath)
	if err != nil {
		abs = p.cachedPath
	}
	return "file://" + abs
}

// asFetchError keeps FetchErrors and sentinel errors intact and classifies anything else as a retrieval failure.
func asFetchError(err error) error {
	if _, ok := music.IsFetchError(err); ok {
		return err
	}
	if errors.Is(err, music.ErrRetrieveIncomplete) {
		return err
	}
	return music.NewFetchError(music.FetchRetrieval, "source request failed", err)
}
