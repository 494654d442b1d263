package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(url string) music.TrackMetadata {
	return music.TrackMetadata{CanonicalURL: url, Title: url, InternalLocator: "file:///" + url}
}

func urls(entries []music.QueueEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Metadata.CanonicalURL
	}
	return out
}

func TestInMemoryQueue_InsertionOrder(t *testing.T) {
	q := NewInMemoryQueue()
	a := q.Add(track("a"), true)
	q.Add(track("b"), false)
	q.Add(track("c"), false)

	assert.Equal(t, []string{"a", "b", "c"}, urls(q.All(false)))
	assert.Equal(t, int64(0), a.Index)
	assert.True(t, a.ManuallyRequested)
	assert.Equal(t, 3, q.Len())

	_, ok := q.Current()
	assert.False(t, ok)

	next, ok := q.Next(false)
	require.True(t, ok)
	assert.Equal(t, "a", next.Metadata.CanonicalURL)
	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, next.ID, current.ID)
	assert.Equal(t, 2, q.Len())
}

func TestInMemoryQueue_VotingOrder(t *testing.T) {
	q := NewInMemoryQueue()
	q.Add(track("a"), false)
	b := q.Add(track("b"), false)
	c := q.Add(track("c"), false)

	_, err := q.Vote(c.ID, 2)
	require.NoError(t, err)
	_, err = q.Vote(b.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "a"}, urls(q.All(true)))
	assert.Equal(t, []string{"a", "b", "c"}, urls(q.All(false)))

	next, ok := q.Next(true)
	require.True(t, ok)
	assert.Equal(t, "b", next.Metadata.CanonicalURL)
	assert.Equal(t, []string{"c", "a"}, urls(q.All(true)))

	_, err = q.Vote("missing", 1)
	assert.ErrorIs(t, err, music.ErrEntryNotFound)
}

func TestInMemoryQueue_NextOnEmpty(t *testing.T) {
	q := NewInMemoryQueue()
	_, ok := q.Next(true)
	assert.False(t, ok)
}

func TestInMemoryQueue_ConcurrentAdd(t *testing.T) {
	q := NewInMemoryQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Add(track(fmt.Sprintf("t%d", i)), false)
		}(i)
	}
	wg.Wait()

	entries := q.All(false)
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, int64(i), e.Index)
	}
}
