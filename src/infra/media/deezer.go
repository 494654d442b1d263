package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/music"
	"golang.org/x/time/rate"
)

// Deezer API response structures
type deezerTrack struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Link     string `json:"link"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Error *deezerError `json:"error"`
}

type deezerSearchResponse struct {
	Data  []deezerTrack `json:"data"`
	Total int           `json:"total"`
	Error *deezerError  `json:"error"`
}

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DeezerCatalog resolves track ids and searches through the public Deezer API.
// Calls are rate limited across all requests sharing the catalog.
type DeezerCatalog struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDeezerCatalog creates the catalog client.
func NewDeezerCatalog(cfg config.DeezerSource) *DeezerCatalog {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &DeezerCatalog{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Lookup fetches a track by id.
func (d *DeezerCatalog) Lookup(ctx context.Context, id string) (requesting.CatalogEntry, error) {
	var track deezerTrack
	if err := d.get(ctx, "/track/"+url.PathEscape(id), &track); err != nil {
		return requesting.CatalogEntry{}, err
	}
	if track.Error != nil {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "deezer: "+track.Error.Message, nil)
	}
	return entryFromDeezer(track), nil
}

// Search returns the first catalog hit for query.
func (d *DeezerCatalog) Search(ctx context.Context, query string) (requesting.CatalogEntry, error) {
	var resp deezerSearchResponse
	if err := d.get(ctx, "/search?limit=1&q="+url.QueryEscape(query), &resp); err != nil {
		return requesting.CatalogEntry{}, err
	}
	if resp.Error != nil {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "deezer: "+resp.Error.Message, nil)
	}
	if len(resp.Data) == 0 {
		return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "no deezer track matches "+query, nil)
	}
	return entryFromDeezer(resp.Data[0]), nil
}

func (d *DeezerCatalog) get(ctx context.Context, path string, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return music.NewFetchError(music.FetchRetrieval, "catalog call aborted", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return music.NewFetchError(music.FetchRetrieval, "deezer request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return music.NewFetchError(music.FetchRetrieval, fmt.Sprintf("deezer answered %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return music.NewFetchError(music.FetchRetrieval, "invalid deezer response", err)
	}
	return nil
}

func entryFromDeezer(track deezerTrack) requesting.CatalogEntry {
	id := strconv.FormatInt(track.ID, 10)
	return requesting.CatalogEntry{
		ID:        id,
		URL:       requesting.DeezerTrackURL(id),
		Artist:    track.Artist.Name,
		Title:     track.Title,
		Duration:  track.Duration,
		SizeBytes: requesting.UnknownSize,
	}
}
