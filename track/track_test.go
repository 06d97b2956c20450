package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityTraits(t *testing.T) {
	tests := []struct {
		v        Visibility
		scorable bool
		visible  bool
		name     string
	}{
		{Open, true, false, "guessable"},
		{Locked, false, true, "locked"},
		{Hidden, false, false, "hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.scorable, tt.v.Scorable())
			assert.Equal(t, tt.visible, tt.v.VisibleImmediately())
			assert.Equal(t, tt.name, tt.v.String())
			parsed, err := ParseVisibility(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.v, parsed)
		})
	}
	assert.False(t, Visibility(9).Scorable())
	_, err := ParseVisibility("maybe")
	assert.Error(t, err)
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{Title, Artist, Misc} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("album")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	b := NewBuilder(nil)
	tr := b.Build(Metadata{
		Title:    "Stay (feat. Justin Bieber)",
		Artists:  []string{"The Kid LAROI", "Justin Bieber"},
		Misc:     []string{"2021"},
		CoverURL: "https://img.example/stay.jpg",
		URI:      "spotify:track:5PjdY0CKGZdEuoNab3yDmX",
	})

	require.Len(t, tr.Guessables, 4)
	assert.Equal(t, "Stay", tr.Title())
	assert.Equal(t, Title, tr.Guessables[0].Kind)
	assert.Equal(t, []string{"stay"}, tr.Guessables[0].AcceptedForms)
	assert.Equal(t, Artist, tr.Guessables[1].Kind)
	assert.Equal(t, []string{"the kid laroi", "kid laroi"}, tr.Guessables[1].AcceptedForms)
	assert.Equal(t, "Justin Bieber", tr.Guessables[2].Original)
	assert.Equal(t, Misc, tr.Guessables[3].Kind)
	assert.Equal(t, 4, tr.ScorableCount())
	assert.Equal(t, "spotify:track:5PjdY0CKGZdEuoNab3yDmX", tr.PlayableRef)
	assert.False(t, tr.Done)
}

func TestEditTrack(t *testing.T) {
	b := NewBuilder(nil)
	tr := b.Build(Metadata{Title: "Roxanne", Artists: []string{"The Police"}})

	require.NoError(t, tr.SetVisibility(1, Locked))
	assert.Equal(t, 1, tr.ScorableCount())
	assert.ErrorIs(t, tr.SetVisibility(5, Hidden), ErrIndex)
	assert.Error(t, tr.SetVisibility(0, Visibility(7)))

	b.AddMisc(&tr, "Outlandos d'Amour", Hidden)
	require.Len(t, tr.Guessables, 3)
	assert.Equal(t, []string{"outlandos d'amour"}, tr.Guessables[2].AcceptedForms)
	assert.Equal(t, 1, tr.ScorableCount())
}

func TestClone(t *testing.T) {
	tr := NewBuilder(nil).Build(Metadata{Title: "Roxanne", Artists: []string{"The Police"}})
	c := tr.Clone()
	c.Guessables[1].AcceptedForms[0] = "changed"
	c.Guessables[0].Visibility = Hidden
	assert.Equal(t, "the police", tr.Guessables[1].AcceptedForms[0])
	assert.Equal(t, Open, tr.Guessables[0].Visibility)
}
