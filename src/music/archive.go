package music

import "context"

// RecordParams describes one enqueue being written to the archive.
type RecordParams struct {
	URL    string
	Artist string
	Title  string
	// Query is linked to the track when Archive is set and it is non-empty.
	Query string
	// Archive marks an archiving request: it increments the counter and links the query.
	Archive bool
}

// Archive is the persistent table of known tracks keyed by canonical URL.
type Archive interface {
	// Record gets or creates the row for params.URL and increments its counter when
	// params.Archive is set. Concurrent calls for the same URL never create two rows
	// and never lose an increment.
	Record(ctx context.Context, params RecordParams) (int64, error)
	// LogRequest appends a request log entry. It is observational only.
	LogRequest(ctx context.Context, trackID int64, address string) error
	// FindByKey returns the track with the given archive key, or nil when absent.
	FindByKey(ctx context.Context, id int64) (*ArchivedTrack, error)
	// FindByURL returns the track with the given canonical URL, or nil when absent.
	FindByURL(ctx context.Context, url string) (*ArchivedTrack, error)
	// TopTracks returns the most requested tracks.
	TopTracks(ctx context.Context, limit int) ([]*ArchivedTrack, error)
	// QueriesFor returns the queries linked to a track, oldest first.
	QueriesFor(ctx context.Context, trackID int64) ([]string, error)
	// CountRequests returns the number of logged requests for a track.
	CountRequests(ctx context.Context, trackID int64) (int, error)
	// CountTracks returns the number of archived tracks.
	CountTracks(ctx context.Context) (int, error)
}
