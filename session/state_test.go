package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/track"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := track.NewBuilder(nil)
	tracks := []track.Track{
		b.Build(track.Metadata{Title: "Roxanne", Artists: []string{"The Police"}, URI: "spotify:track:1", CoverURL: "https://img.example/1.jpg"}),
		b.Build(track.Metadata{Title: "September", Artists: []string{"Earth, Wind & Fire"}, Misc: []string{"1978"}}),
	}
	require.NoError(t, tracks[1].SetVisibility(2, track.Hidden))
	p := NewProgress(tracks, true)
	p.Current = 0
	p.Finish(p.Current)

	players := []ledger.Player{
		{ID: "1", DisplayName: "alice", Score: 5, Avatar: "https://img.example/a.png", Stats: ledger.Stats{Answers: 3, FirstCount: 1, ComboCount: 1, FastestAnswerMs: 1234}},
		{ID: "2", DisplayName: "bob", Score: -1},
	}

	data, err := Encode(p, players)
	require.NoError(t, err)

	gotP, gotPlayers, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, p.DoneCount, gotP.DoneCount)
	assert.Equal(t, p.Current, gotP.Current)
	assert.True(t, gotP.Shuffle)
	assert.Equal(t, p.Tracks, gotP.Tracks)
	assert.Equal(t, players, gotPlayers)

	again, err := Encode(gotP, gotPlayers)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, data, again)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"future version", `{"version":2}`},
		{"missing version", `{"progress":{}}`},
		{"bad kind", `{"version":1,"progress":{"totalTracks":1,"tracks":[{"guessables":[{"kind":"album","visibility":"hidden","acceptedForms":["x"]}]}]}}`},
		{"bad visibility", `{"version":1,"progress":{"totalTracks":1,"tracks":[{"guessables":[{"kind":"misc","visibility":"maybe","acceptedForms":["x"]}]}]}}`},
		{"count mismatch", `{"version":1,"progress":{"totalTracks":3,"tracks":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
	_, _, err := Decode([]byte(`{"version":2}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
