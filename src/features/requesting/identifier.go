package requesting

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/contre95/jukebox/src/music"
)

var (
	deezerTrackURLRegex = regexp.MustCompile(`^(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?track/(\d+)`)
	deezerTrackURIRegex = regexp.MustCompile(`^deezer:track:(\d+)$`)
	// Matches "scheme://..." and service URIs such as "spotify:track:..." that no provider handles.
	schemeRegex = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://|[a-z]+:(?:track|album|artist|playlist):)`)
)

// Identifier is a user request parsed into the source that should serve it.
type Identifier struct {
	Kind music.SourceKind
	// Ref is the canonical URL for download sources and the track id for deezer.
	// It is empty for free-text queries.
	Ref   string
	Query string
}

// IsQuery reports whether the identifier still needs a catalog search.
func (id Identifier) IsQuery() bool {
	return id.Ref == ""
}

// IdentifierParser maps request text to a source kind.
type IdentifierParser struct {
	RemoteHosts []string
	DefaultKind music.SourceKind
}

// Parse classifies text as a local file, remote download URL, deezer track or free-text query.
func (p IdentifierParser) Parse(text string) (Identifier, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Identifier{}, fmt.Errorf("empty request")
	}

	if m := deezerTrackURIRegex.FindStringSubmatch(text); len(m) > 1 {
		return Identifier{Kind: music.SourceDeezer, Ref: m[1], Query: text}, nil
	}
	if m := deezerTrackURLRegex.FindStringSubmatch(text); len(m) > 1 {
		return Identifier{Kind: music.SourceDeezer, Ref: m[1], Query: text}, nil
	}

	if strings.HasPrefix(strings.ToLower(text), "file://") {
		path := text[len("file://"):]
		if unescaped, err := url.PathUnescape(path); err == nil {
			path = unescaped
		}
		if !filepath.IsAbs(path) {
			return Identifier{}, fmt.Errorf("%w: file url must be absolute: %s", music.ErrUnsupportedSource, text)
		}
		return Identifier{Kind: music.SourceLocal, Ref: "file://" + filepath.Clean(path), Query: text}, nil
	}

	if schemeRegex.MatchString(text) {
		u, err := url.Parse(text)
		if err == nil && (u.Scheme == "http" || u.Scheme == "https") && p.isRemoteHost(u.Hostname()) {
			u.Fragment = ""
			return Identifier{Kind: music.SourceRemote, Ref: u.String(), Query: text}, nil
		}
		return Identifier{}, fmt.Errorf("%w: %s", music.ErrUnsupportedSource, text)
	}

	if p.DefaultKind == music.SourceUnknown {
		return Identifier{}, fmt.Errorf("%w: no default source for queries", music.ErrUnsupportedSource)
	}
	return Identifier{Kind: p.DefaultKind, Query: text}, nil
}

func (p IdentifierParser) isRemoteHost(host string) bool {
	for _, allowed := range p.RemoteHosts {
		if strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}
