package replay

import (
	"context"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/track"
)

const transcript = `# opening night
{"atMs":0,"type":"next"}
{"atMs":1000,"type":"chat","nick":"Alice","userId":"u1","text":"roxanne"}
{"atMs":3000,"type":"chat","nick":"Bob","userId":"u2","text":"the police"}
{"atMs":2500,"type":"chat","nick":"Bob","userId":"u2","text":"roxanne"}
{"atMs":7000,"type":"chat","nick":"Carol","userId":"u3","text":"roxanne"}

{"atMs":9500,"type":"reveal"}
{"atMs":10000,"type":"next"}
{"atMs":10500,"type":"adjust","userId":"u3","delta":1}
{"atMs":11000,"type":"cancel"}
`

func TestParse(t *testing.T) {
	events, err := Parse(strings.NewReader(transcript))
	require.NoError(t, err)
	require.Len(t, events, 9)

	// sorted by time, file order kept for ties
	assert.Equal(t, int64(2500), events[2].AtMs)
	assert.Equal(t, "roxanne", events[2].Text)
	assert.Equal(t, 5, events[2].line)
	assert.Equal(t, "the police", events[3].Text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bad json", input: "{\"atMs\":0,\"type\":\"next\"}\n{oops", want: "line 2"},
		{name: "unknown type", input: `{"atMs":0,"type":"skip"}`, want: "line 1"},
		{name: "chat without user", input: `{"atMs":0,"type":"chat","text":"hi"}`, want: "line 1"},
		{name: "negative time", input: `{"atMs":-5,"type":"next"}`, want: "line 1"},
		{name: "bad delta", input: `{"atMs":0,"type":"adjust","userId":"u1","delta":3}`, want: "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := game.DefaultSettings()
	s.ChatNotifications = false
	engine, err := game.New(game.Options{Clock: clock, Settings: s})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	require.NoError(t, engine.LoadPlaylist([]track.Metadata{
		{Title: "Roxanne", Artists: []string{"The Police"}},
		{Title: "September", Artists: []string{"Earth, Wind & Fire"}},
	}))

	events, err := Parse(strings.NewReader(transcript))
	require.NoError(t, err)

	res, err := Run(context.Background(), engine, clock, events)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Applied)
	require.Len(t, res.Rejected, 2)
	assert.Contains(t, res.Rejected[0], "line 8: reveal")
	assert.Contains(t, res.Rejected[1], "line 11: cancel")

	scores := map[string]int{}
	ranks := map[string]int{}
	for _, p := range engine.Leaderboard("") {
		scores[p.DisplayName] = p.Score
		ranks[p.DisplayName] = p.Rank
	}
	// Alice: first on the title. Bob: late on the title, then first on
	// the artist with a combo. Carol: too late, then +1 by hand.
	assert.Equal(t, map[string]int{"Alice": 2, "Bob": 4, "Carol": 1}, scores)
	assert.Equal(t, map[string]int{"Bob": 1, "Alice": 2, "Carol": 3}, ranks)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine, err := game.New(game.Options{Clock: clock})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, engine, clock, []Event{{Type: TypeNext}})
	require.ErrorIs(t, err, context.Canceled)
}
