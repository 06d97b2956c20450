package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewBeforeFirstTrack(t *testing.T) {
	h := newHarness(t, nil)
	v := h.engine.View()
	assert.False(t, v.Active)
	assert.Equal(t, -1, v.TrackIndex)
	assert.Equal(t, 2, v.TotalTracks)
	assert.Empty(t, v.Guessables)
}

func TestViewHidesAnswersUntilResolved(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.engine.OnChatMessage("Alice", "a", "roxanne")

	v := h.engine.View()
	require.Len(t, v.Guessables, 2)
	assert.Equal(t, "title", v.Guessables[0].Kind)
	assert.Empty(t, v.Guessables[0].Answer)
	assert.Nil(t, v.Guessables[0].Pending, "pending counts are private by default")
	assert.Empty(t, v.CoverURL)
}

func TestPodiumAndLoser(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.engine.OnChatMessage(id, id, "hi")
	}
	for id, n := range map[string]int{"a": 4, "b": 3, "c": 2, "d": 1} {
		for i := 0; i < n; i++ {
			require.NoError(t, h.engine.AdjustScore(id, 1))
		}
	}

	podium := h.engine.Podium()
	require.Len(t, podium, 3)
	assert.Equal(t, "a", podium[0].Players[0].ID)

	loser, ok := h.engine.PickLoser()
	require.True(t, ok)
	assert.Equal(t, "d", loser.ID, "e has no points")
}
