package requesting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/music"
	"github.com/gosimple/unidecode"
)

// UnknownSize marks a catalog entry whose media size could not be determined.
const UnknownSize int64 = -1

// CatalogEntry is what a source knows about a track before it is retrieved.
type CatalogEntry struct {
	ID        string
	URL       string
	Artist    string
	Title     string
	Duration  int
	SizeBytes int64
	Extension string
}

// Catalog resolves track references and searches a source.
type Catalog interface {
	// Lookup resolves a reference (a URL, or a track id for streaming sources).
	// A missing track returns a *music.FetchError with reason FetchNotFound.
	Lookup(ctx context.Context, ref string) (CatalogEntry, error)
	// Search returns the best match for a free-text query.
	Search(ctx context.Context, query string) (CatalogEntry, error)
}

// MediaBackend is a Catalog whose media can be stored in the local cache.
type MediaBackend interface {
	Catalog
	Kind() music.SourceKind
	// Retrieve writes the entry's media to dest, reporting progress as it goes.
	// Media longer than opts.MaxBytes fails with a FetchError of reason FetchTooLarge.
	Retrieve(ctx context.Context, entry CatalogEntry, dest string, opts RetrieveOptions) error
}

// RetrieveOptions bounds and observes one retrieval.
type RetrieveOptions struct {
	// MaxBytes caps the bytes written. 0 means no cap.
	MaxBytes int64
	Progress func(downloaded, total int64)
}

// TagReader reads tags from retrieved media.
type TagReader interface {
	ReadFileTags(ctx context.Context, filePath string) (music.FileTags, error)
}

// TagWriter writes tags a retrieved file is missing.
type TagWriter interface {
	FillMissingTags(ctx context.Context, filePath string, tags music.FileTags) error
}

// EnqueueFunc is handed to Provider.Fetch and must be its last step on success.
type EnqueueFunc func(ctx context.Context) error

// Provider resolves one request into a playable track.
type Provider interface {
	Kind() music.SourceKind
	// Query is the original request text, shown while the track is being fetched.
	Query() string
	// CheckCached reports whether the media is already available locally.
	CheckCached(ctx context.Context) (bool, error)
	// CheckFetchable resolves the track identity and validates it can be fetched.
	CheckFetchable(ctx context.Context) error
	// Fetch makes the media playable and finishes by calling enqueue.
	Fetch(ctx context.Context, enqueue EnqueueFunc) error
	// Metadata is computed on first use and memoised.
	Metadata(ctx context.Context) (music.TrackMetadata, error)
	InternalLocator() string
}

// Builder turns a Request into a Provider.
type Builder interface {
	Build(ctx context.Context, req Request) (Provider, error)
}

// ProviderFactory builds providers from requests using the configured sources.
type ProviderFactory struct {
	config   *config.Manager
	archive  music.Archive
	backends map[music.SourceKind]MediaBackend
	catalog  Catalog
	reader   TagReader
	writer   TagWriter
}

// NewProviderFactory creates a factory. catalog may be nil when deezer is disabled.
func NewProviderFactory(cfg *config.Manager, archive music.Archive, reader TagReader, writer TagWriter, catalog Catalog, backends ...MediaBackend) *ProviderFactory {
	f := &ProviderFactory{
		config:   cfg,
		archive:  archive,
		backends: make(map[music.SourceKind]MediaBackend),
		catalog:  catalog,
		reader:   reader,
		writer:   writer,
	}
	for _, b := range backends {
		f.backends[b.Kind()] = b
	}
	return f
}

// Parser returns an identifier parser for the current configuration.
func (f *ProviderFactory) Parser() IdentifierParser {
	cfg := f.config.Get()
	kind, err := music.ParseSourceKind(cfg.Requests.DefaultSource)
	if err != nil {
		kind = music.SourceUnknown
	}
	var hosts []string
	if cfg.Sources.Remote.Enabled {
		hosts = cfg.Sources.Remote.Hosts
	}
	return IdentifierParser{RemoteHosts: hosts, DefaultKind: kind}
}

// Build resolves the request's identity. An archive key wins over a URL, and a URL over the query text.
func (f *ProviderFactory) Build(ctx context.Context, req Request) (Provider, error) {
	parser := f.Parser()
	var ident Identifier
	var err error
	switch {
	case req.Key != 0:
		track, findErr := f.archive.FindByKey(ctx, req.Key)
		if findErr != nil {
			return nil, fmt.Errorf("failed to look up archive key %d: %w", req.Key, findErr)
		}
		if track == nil {
			return nil, fmt.Errorf("%w: archive key %d", music.ErrNotFound, req.Key)
		}
		ident, err = parser.Parse(track.URL)
		if err == nil && ident.IsQuery() {
			err = fmt.Errorf("%w: archived url %s", music.ErrUnsupportedSource, track.URL)
		}
		if err == nil {
			ident.Query = archivedQuery(track, req.Query)
		}
	case req.URL != "":
		ident, err = parser.Parse(req.URL)
		if err == nil && ident.IsQuery() {
			err = fmt.Errorf("%w: not a url: %s", music.ErrUnsupportedSource, req.URL)
		}
	default:
		ident, err = parser.Parse(req.Query)
	}
	if err != nil {
		return nil, err
	}
	return f.forIdentifier(ident)
}

func (f *ProviderFactory) forIdentifier(ident Identifier) (Provider, error) {
	cfg := f.config.Get()
	if ident.Kind == music.SourceDeezer {
		if f.catalog == nil {
			return nil, fmt.Errorf("%w: deezer source is disabled", music.ErrUnsupportedSource)
		}
		return NewStreamingProvider(ident, f.catalog), nil
	}
	backend, ok := f.backends[ident.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s source is disabled", music.ErrUnsupportedSource, ident.Kind)
	}
	return NewDownloadProvider(ident, backend, f.reader, f.writer, DownloadOptions{
		CacheDir:         cfg.CachePath,
		MaxBytes:         int64(cfg.Requests.MaxDownloadSizeMB) * 1024 * 1024,
		DefaultExtension: cfg.Sources.Remote.Extension,
	}), nil
}

func archivedQuery(track *music.ArchivedTrack, query string) string {
	if strings.TrimSpace(query) != "" {
		return query
	}
	if track.Artist != "" && track.Title != "" {
		return track.Artist + " - " + track.Title
	}
	if track.Title != "" {
		return track.Title
	}
	return track.URL
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

const maxCacheStemLength = 64

// CacheKey is a stable, filesystem-safe name for the media of a canonical URL.
func CacheKey(canonicalURL string) string {
	sum := sha1.Sum([]byte(canonicalURL))
	digest := hex.EncodeToString(sum[:])[:8]

	base := canonicalURL
	if u, err := url.Parse(canonicalURL); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(base)
	base = strings.TrimSuffix(base, path.Ext(base))
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	stem := strings.Trim(nonAlnum.ReplaceAllString(unidecode.Unidecode(base), "_"), "_")
	if len(stem) > maxCacheStemLength {
		stem = stem[:maxCacheStemLength]
	}
	if stem == "" {
		return digest
	}
	return strings.ToLower(stem) + "-" + digest
}
