package requesting

import (
	"context"
	"fmt"

	"github.com/contre95/jukebox/src/music"
)

// StreamingProvider serves tracks the player streams from the Deezer catalog.
// Nothing is stored locally so CheckCached is always false and the track is
// re-resolved on every request.
type StreamingProvider struct {
	ident    Identifier
	catalog  Catalog
	entry    *CatalogEntry
	metadata *music.TrackMetadata
}

func NewStreamingProvider(ident Identifier, catalog Catalog) *StreamingProvider {
	return &StreamingProvider{ident: ident, catalog: catalog}
}

func (p *StreamingProvider) Kind() music.SourceKind { return music.SourceDeezer }

func (p *StreamingProvider) Query() string { return p.ident.Query }

func (p *StreamingProvider) CheckCached(ctx context.Context) (bool, error) {
	return false, nil
}

// CheckFetchable looks the track up by id, or searches the catalog for the query.
func (p *StreamingProvider) CheckFetchable(ctx context.Context) error {
	var entry CatalogEntry
	var err error
	if p.ident.Ref != "" {
		entry, err = p.catalog.Lookup(ctx, p.ident.Ref)
	} else {
		entry, err = p.catalog.Search(ctx, p.ident.Query)
	}
	if err != nil {
		return asFetchError(err)
	}
	if entry.ID == "" {
		entry.ID = p.ident.Ref
	}
	if entry.ID == "" {
		return music.NewFetchError(music.FetchNotFound, "catalog returned no track id", nil)
	}
	p.entry = &entry
	return nil
}

// Fetch has no storage step: the track is enqueued right away.
func (p *StreamingProvider) Fetch(ctx context.Context, enqueue EnqueueFunc) error {
	if p.entry == nil {
		return fmt.Errorf("fetch before the track was resolved: %s", p.ident.Query)
	}
	return enqueue(ctx)
}

func (p *StreamingProvider) Metadata(ctx context.Context) (music.TrackMetadata, error) {
	if p.metadata != nil {
		return *p.metadata, nil
	}
	if p.entry == nil {
		return music.TrackMetadata{}, fmt.Errorf("track not resolved: %s", p.ident.Query)
	}
	md := music.TrackMetadata{
		CanonicalURL:    p.canonicalURL(),
		Artist:          p.entry.Artist,
		Title:           p.entry.Title,
		Duration:        p.entry.Duration,
		InternalLocator: p.InternalLocator(),
		Source:          music.SourceDeezer,
	}
	md.EnsureDefaults()
	if err := md.Validate(); err != nil {
		return music.TrackMetadata{}, err
	}
	p.metadata = &md
	return md, nil
}

// canonicalURL ignores the catalog's own link so localized URLs archive as one track.
func (p *StreamingProvider) canonicalURL() string {
	return DeezerTrackURL(p.entry.ID)
}

func (p *StreamingProvider) InternalLocator() string {
	if p.entry == nil {
		return ""
	}
	return "deezer:track:" + p.entry.ID
}

// DeezerTrackURL is the canonical URL of a deezer track id.
func DeezerTrackURL(id string) string {
	return "https://www.deezer.com/track/" + id
}
