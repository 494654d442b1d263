package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contre95/jukebox/src/music"
	_ "github.com/mattn/go-sqlite3"
)

const busyTimeoutMillis = 5000

// SqliteArchive is a SQLite implementation of the music.Archive interface.
type SqliteArchive struct {
	db *sql.DB
}

var _ music.Archive = (*SqliteArchive)(nil)

// NewSqliteArchive opens (or creates) the archive database at path.
func NewSqliteArchive(path string) (*SqliteArchive, error) {
	// Transactions take the write lock on BEGIN.
	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_txlock=immediate&_foreign_keys=on", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Archive database ready", "path", path)
	return &SqliteArchive{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS archived_tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			artist TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			request_count INTEGER NOT NULL DEFAULT 0 CHECK (request_count >= 0),
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS archived_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			query TEXT NOT NULL,
			UNIQUE (track_id, query),
			FOREIGN KEY (track_id) REFERENCES archived_tracks(id)
		);

		CREATE TABLE IF NOT EXISTS request_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			address TEXT NOT NULL,
			requested_at TEXT NOT NULL,
			FOREIGN KEY (track_id) REFERENCES archived_tracks(id)
		);

		CREATE INDEX IF NOT EXISTS idx_archived_tracks_count ON archived_tracks(request_count DESC);
		CREATE INDEX IF NOT EXISTS idx_request_logs_track ON request_logs(track_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create archive tables: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *SqliteArchive) Close() error {
	return d.db.Close()
}

// Record gets or creates the row for params.URL in a single statement and links the
// query in the same transaction.
func (d *SqliteArchive) Record(ctx context.Context, params music.RecordParams) (int64, error) {
	if strings.TrimSpace(params.URL) == "" {
		return 0, fmt.Errorf("cannot archive a track without url")
	}
	increment := 0
	if params.Archive {
		increment = 1
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO archived_tracks (url, artist, title, request_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			request_count = archived_tracks.request_count + excluded.request_count,
			artist = CASE WHEN archived_tracks.artist = '' THEN excluded.artist ELSE archived_tracks.artist END,
			title = CASE WHEN archived_tracks.title = '' THEN excluded.title ELSE archived_tracks.title END
		RETURNING id`,
		params.URL, params.Artist, params.Title, increment, time.Now().UTC().Format(time.RFC3339),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert archived track %s: %w", params.URL, err)
	}

	if params.Archive && strings.TrimSpace(params.Query) != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO archived_queries (track_id, query) VALUES (?, ?)`,
			id, strings.TrimSpace(params.Query))
		if err != nil {
			return 0, fmt.Errorf("failed to link query to track %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return id, nil
}

// LogRequest appends a request log entry for the track.
func (d *SqliteArchive) LogRequest(ctx context.Context, trackID int64, address string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO request_logs (track_id, address, requested_at) VALUES (?, ?, ?)`,
		trackID, address, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to log request for track %d: %w", trackID, err)
	}
	return nil
}

func (d *SqliteArchive) FindByKey(ctx context.Context, id int64) (*music.ArchivedTrack, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, url, artist, title, request_count, created_at FROM archived_tracks WHERE id = ?`, id)
	return scanTrack(row)
}

func (d *SqliteArchive) FindByURL(ctx context.Context, url string) (*music.ArchivedTrack, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, url, artist, title, request_count, created_at FROM archived_tracks WHERE url = ?`, url)
	return scanTrack(row)
}

// TopTracks returns up to limit tracks ordered by request count, most requested first.
func (d *SqliteArchive) TopTracks(ctx context.Context, limit int) ([]*music.ArchivedTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, url, artist, title, request_count, created_at FROM archived_tracks
		WHERE request_count > 0
		ORDER BY request_count DESC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*music.ArchivedTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// QueriesFor returns the queries linked to a track.
func (d *SqliteArchive) QueriesFor(ctx context.Context, trackID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT query FROM archived_queries WHERE track_id = ? ORDER BY id`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked queries: %w", err)
	}
	defer rows.Close()
	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// CountRequests returns the number of request log entries for a track.
func (d *SqliteArchive) CountRequests(ctx context.Context, trackID int64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_logs WHERE track_id = ?`, trackID).Scan(&count)
	return count, err
}

// CountTracks returns the number of archived tracks.
func (d *SqliteArchive) CountTracks(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_tracks`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*music.ArchivedTrack, error) {
	var track music.ArchivedTrack
	var created string
	err := row.Scan(&track.ID, &track.URL, &track.Artist, &track.Title, &track.RequestCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan archived track: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339, created); err == nil {
		track.CreatedAt = parsed
	}
	return &track, nil
}
