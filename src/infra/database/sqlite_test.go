package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *SqliteArchive {
	t.Helper()
	archive, err := NewSqliteArchive(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestRecord_CreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	params := music.RecordParams{URL: "https://source/x", Artist: "A", Title: "X", Query: "x song", Archive: true}
	id, err := archive.Record(ctx, params)
	require.NoError(t, err)

	track, err := archive.FindByURL(ctx, "https://source/x")
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, id, track.ID)
	assert.Equal(t, int64(1), track.RequestCount)
	assert.Equal(t, "A", track.Artist)
	assert.False(t, track.CreatedAt.IsZero())

	again, err := archive.Record(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	track, err = archive.FindByKey(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), track.RequestCount)

	queries, err := archive.QueriesFor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"x song"}, queries)

	count, err := archive.CountTracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecord_NonArchivingDoesNotCount(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	params := music.RecordParams{URL: "https://source/y", Title: "Y", Query: "why"}
	first, err := archive.Record(ctx, params)
	require.NoError(t, err)
	second, err := archive.Record(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	track, err := archive.FindByURL(ctx, params.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(0), track.RequestCount)

	queries, err := archive.QueriesFor(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, queries)

	top, err := archive.TopTracks(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestRecord_FillsMissingTagsOnly(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	_, err := archive.Record(ctx, music.RecordParams{URL: "u", Title: "First"})
	require.NoError(t, err)
	_, err = archive.Record(ctx, music.RecordParams{URL: "u", Artist: "Later", Title: "Second"})
	require.NoError(t, err)

	track, err := archive.FindByURL(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "Later", track.Artist)
	assert.Equal(t, "First", track.Title)
}

func TestRecord_ConcurrentSameURL(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	const archiving, plain = 24, 8
	var wg sync.WaitGroup
	ids := make(chan int64, archiving+plain)
	errs := make(chan error, archiving+plain)
	for i := 0; i < archiving+plain; i++ {
		wg.Add(1)
		go func(archiveFlag bool) {
			defer wg.Done()
			id, err := archive.Record(ctx, music.RecordParams{URL: "https://source/hot", Title: "Hot", Archive: archiveFlag})
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}(i < archiving)
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}

	count, err := archive.CountTracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	track, err := archive.FindByURL(ctx, "https://source/hot")
	require.NoError(t, err)
	assert.Equal(t, int64(archiving), track.RequestCount)
}

func TestFind_Absent(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	track, err := archive.FindByKey(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, track)

	track, err = archive.FindByURL(ctx, "nowhere")
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestLogRequestAndTopTracks(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive(t)

	a, err := archive.Record(ctx, music.RecordParams{URL: "a", Archive: true})
	require.NoError(t, err)
	b, err := archive.Record(ctx, music.RecordParams{URL: "b", Archive: true})
	require.NoError(t, err)
	_, err = archive.Record(ctx, music.RecordParams{URL: "b", Archive: true})
	require.NoError(t, err)

	require.NoError(t, archive.LogRequest(ctx, a, "10.0.0.1"))
	require.NoError(t, archive.LogRequest(ctx, a, "10.0.0.2"))

	logged, err := archive.CountRequests(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, logged)

	top, err := archive.TopTracks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b, top[0].ID)
	assert.Equal(t, a, top[1].ID)
}

func TestRecord_RejectsEmptyURL(t *testing.T) {
	archive := newTestArchive(t)
	_, err := archive.Record(context.Background(), music.RecordParams{Archive: true})
	assert.Error(t, err)
}
