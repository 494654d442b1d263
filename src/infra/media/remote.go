package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/music"
)

const userAgent = "Jukebox/1.0"

// RemoteDownloader retrieves tracks over HTTP from the configured download hosts.
type RemoteDownloader struct {
	client *http.Client
}

// NewRemoteDownloader creates a backend using the remote source timeout.
func NewRemoteDownloader(cfg config.RemoteSource) *RemoteDownloader {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &RemoteDownloader{client: &http.Client{Timeout: timeout}}
}

func (r *RemoteDownloader) Kind() music.SourceKind { return music.SourceRemote }

// Lookup sends a HEAD request to learn whether the file exists and how large it is.
func (r *RemoteDownloader) Lookup(ctx context.Context, ref string) (requesting.CatalogEntry, error) {
	resp, err := r.do(ctx, http.MethodHead, ref)
	if err != nil {
		return requesting.CatalogEntry{}, err
	}
	resp.Body.Close()

	entry := requesting.CatalogEntry{
		ID:        ref,
		URL:       ref,
		SizeBytes: requesting.UnknownSize,
	}
	if resp.ContentLength >= 0 {
		entry.SizeBytes = resp.ContentLength
	}
	if u, err := url.Parse(ref); err == nil {
		base := path.Base(u.Path)
		ext := path.Ext(base)
		entry.Title = strings.TrimSuffix(base, ext)
		entry.Extension = strings.TrimPrefix(strings.ToLower(ext), ".")
	}
	return entry, nil
}

// Search is not offered by plain download hosts.
func (r *RemoteDownloader) Search(ctx context.Context, query string) (requesting.CatalogEntry, error) {
	return requesting.CatalogEntry{}, music.NewFetchError(music.FetchNotFound, "remote source cannot search", nil)
}

// Retrieve downloads the media into dest.
// The body is capped at opts.MaxBytes whatever the host announced in Lookup.
func (r *RemoteDownloader) Retrieve(ctx context.Context, entry requesting.CatalogEntry, dest string, opts requesting.RetrieveOptions) error {
	resp, err := r.do(ctx, http.MethodGet, entry.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	total := resp.ContentLength
	if total < 0 {
		total = entry.SizeBytes
	}
	if err := copyTo(dest, resp.Body, total, opts); err != nil {
		if _, ok := music.IsFetchError(err); ok {
			return err
		}
		return music.NewFetchError(music.FetchRetrieval, "download interrupted", err)
	}
	return nil
}

func (r *RemoteDownloader) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, music.NewFetchError(music.FetchNotFound, "invalid url", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, music.NewFetchError(music.FetchRetrieval, "request failed", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, music.NewFetchError(music.FetchNotFound, "no such file on the remote host", nil)
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, music.NewFetchError(music.FetchRetrieval, fmt.Sprintf("remote host answered %d", resp.StatusCode), nil)
	}
	return resp, nil
}
