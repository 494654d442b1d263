package music

import "fmt"

// SourceKind identifies where a track comes from and therefore which provider handles it.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	// SourceLocal is a file:// track copied from a local media directory.
	SourceLocal
	// SourceRemote is a track downloaded over HTTP from a known download host.
	SourceRemote
	// SourceDeezer is a track streamed from the Deezer catalog.
	SourceDeezer
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceDeezer:
		return "deezer"
	default:
		return "unknown"
	}
}

// Downloadable reports whether tracks of this kind are stored in the local cache before playback.
func (k SourceKind) Downloadable() bool {
	return k == SourceLocal || k == SourceRemote
}

// ParseSourceKind maps a configuration name to a SourceKind.
func ParseSourceKind(name string) (SourceKind, error) {
	switch name {
	case "local":
		return SourceLocal, nil
	case "remote":
		return SourceRemote, nil
	case "deezer":
		return SourceDeezer, nil
	default:
		return SourceUnknown, fmt.Errorf("%w: unknown source kind %q", ErrUnsupportedSource, name)
	}
}

// MarshalText lets SourceKind render as its name in JSON state snapshots.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
