package session

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/blindtest/track"
)

func testTracks(n int) []track.Track {
	b := track.NewBuilder(nil)
	out := make([]track.Track, n)
	for i := range out {
		out[i] = b.Build(track.Metadata{Title: "Song", Artists: []string{"Band"}})
	}
	return out
}

func TestSequentialAdvance(t *testing.T) {
	p := NewProgress(testTracks(3), false)
	assert.Nil(t, p.Active())

	i, ok := p.Next(nil)
	require.True(t, ok)
	assert.Equal(t, 0, i)
	p.Current = i
	require.NotNil(t, p.Active())
	assert.True(t, p.Finish(0))
	assert.False(t, p.Finish(0), "finish happens once")
	assert.Equal(t, 1, p.DoneCount)

	i, _ = p.Next(nil)
	assert.Equal(t, 1, i)
	assert.True(t, p.Finish(1))
	i, _ = p.Next(nil)
	assert.True(t, p.Finish(i))

	_, ok = p.Next(nil)
	assert.False(t, ok)
	assert.Equal(t, 3, p.DoneCount)
	assert.Zero(t, p.Remaining())
	assert.False(t, p.Finish(7))
}

func TestShuffleOnlyPicksRemaining(t *testing.T) {
	p := NewProgress(testTracks(5), true)
	p.Finish(1)
	p.Finish(3)
	rng := rand.New(rand.NewPCG(7, 7))
	seen := map[int]bool{}
	for range 100 {
		i, ok := p.Next(rng)
		require.True(t, ok)
		seen[i] = true
	}
	assert.Equal(t, map[int]bool{0: true, 2: true, 4: true}, seen)
}

func TestResetAndClone(t *testing.T) {
	p := NewProgress(testTracks(2), false)
	p.Current = 0
	p.Finish(0)

	c := p.Clone()
	c.Tracks[1].Done = true
	assert.False(t, p.Tracks[1].Done)

	p.Reset()
	assert.Zero(t, p.DoneCount)
	assert.Equal(t, -1, p.Current)
	assert.Equal(t, 2, p.Remaining())
}
