package queue

import (
	"testing"

	"github.com/contre95/jukebox/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderRegistry_Lifecycle(t *testing.T) {
	r := NewPlaceholderRegistry()
	r.Add("r1", "first song")
	r.Add("r2", "second song")
	r.Add("r3", "third song")

	pending := r.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "first song", pending[0].Query)
	assert.False(t, pending[0].Resolved())

	require.NoError(t, r.Resolve("r2", "entry-2"))
	assert.Error(t, r.Resolve("r2", "entry-x"))
	assert.ErrorIs(t, r.Resolve("nope", "entry"), music.ErrPlaceholderNotFound)

	pending = r.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].ID)
	assert.Equal(t, "r3", pending[1].ID)
	assert.Equal(t, 3, r.Len())

	taken := r.TakeResolved()
	assert.Equal(t, map[string]string{"entry-2": "second song"}, taken)
	assert.Equal(t, 2, r.Len())
	assert.Empty(t, r.TakeResolved())
}

func TestPlaceholderRegistry_DiscardOnlyUnresolved(t *testing.T) {
	r := NewPlaceholderRegistry()
	r.Add("r1", "q1")
	r.Add("r2", "q2")
	require.NoError(t, r.Resolve("r2", "e2"))

	assert.True(t, r.Discard("r1"))
	assert.False(t, r.Discard("r1"))
	assert.False(t, r.Discard("r2"))
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.Pending())
}
