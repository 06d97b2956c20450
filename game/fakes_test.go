package game

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/track"
)

type fakeMessenger struct {
	mu       sync.Mutex
	said     []string
	whispers map[string][]string
}

func (m *fakeMessenger) Say(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.said = append(m.said, text)
	return nil
}

func (m *fakeMessenger) Whisper(_ context.Context, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.whispers == nil {
		m.whispers = map[string][]string{}
	}
	m.whispers[userID] = append(m.whispers[userID], text)
	return nil
}

func (m *fakeMessenger) Said() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.said...)
}

func (m *fakeMessenger) Whispers(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.whispers[id]...)
}

type fakePlayback struct {
	mu    sync.Mutex
	err   error
	plays []string
}

func (p *fakePlayback) Play(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.plays = append(p.plays, ref)
	return nil
}

type fakePersister struct {
	mu      sync.Mutex
	submits [][]byte
	saves   [][]byte
}

func (p *fakePersister) Submit(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits = append(p.submits, data)
}

func (p *fakePersister) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, data)
	return nil
}

func (p *fakePersister) Submits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submits)
}

// recorder logs listener events as short strings.
type recorder struct {
	mu     sync.Mutex
	events []string
	last   []ResolvedEvent
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) TrackStarted(int)                   { r.add("started") }
func (r *recorder) LeaderboardChanged([]ledger.Player) { r.add("leaderboard") }
func (r *recorder) TrackFinished(int)                  { r.add("finished") }
func (r *recorder) GuessableResolved(e ResolvedEvent) {
	r.mu.Lock()
	r.last = append(r.last, e)
	r.mu.Unlock()
	r.add("resolved:" + e.Reason)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	engine    *Engine
	clock     *clockwork.FakeClock
	messenger *fakeMessenger
	playback  *fakePlayback
	persister *fakePersister
}

var testPlaylist = []track.Metadata{
	{Title: "Roxanne", Artists: []string{"The Police"}, URI: "spotify:track:roxanne", CoverURL: "https://img.example/roxanne.jpg"},
	{Title: "September", Artists: []string{"Earth, Wind & Fire"}, URI: "spotify:track:september"},
}

func newHarness(t *testing.T, mutate func(*Settings)) *harness {
	t.Helper()
	s := DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		messenger: &fakeMessenger{},
		playback:  &fakePlayback{},
		persister: &fakePersister{},
	}
	e, err := New(Options{
		Clock:     h.clock,
		Settings:  s,
		Messenger: h.messenger,
		Playback:  h.playback,
		Persister: h.persister,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)
	require.NoError(t, e.LoadPlaylist(testPlaylist))
	t.Cleanup(e.Close)
	h.engine = e
	return h
}

func (h *harness) start(t *testing.T) int {
	t.Helper()
	idx, err := h.engine.NextTrack(context.Background())
	require.NoError(t, err)
	return idx
}

// closeWindow moves past the acceptance window and resolves what expired.
func (h *harness) closeWindow(d time.Duration) {
	h.clock.Advance(d)
	h.engine.FlushExpired()
}

func (h *harness) score(t *testing.T, id string) int {
	t.Helper()
	p, ok := h.engine.Ledger().Get(id)
	require.True(t, ok, "player %s", id)
	return p.Score
}

func saidContaining(m *fakeMessenger, sub string) bool {
	for _, s := range m.Said() {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
