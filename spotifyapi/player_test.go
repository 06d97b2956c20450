package spotifyapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, query, auth string
	body                      map[string]any
}

func newSpotifyServer(t *testing.T, playStatus int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()
		if r.URL.Path == "/me/player/play" && playStatus != http.StatusNoContent {
			w.WriteHeader(playStatus)
			_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Player command failed: No active device found"}}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestPlayStartsTrackAndRepeats(t *testing.T) {
	srv, requests := newSpotifyServer(t, http.StatusNoContent)
	p := NewPlayer("user-token", "device-1", WithBaseURL(srv.URL+"/"))

	require.NoError(t, p.Play(context.Background(), "spotify:track:abc"))

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/me/player/play", reqs[0].path)
	assert.Contains(t, reqs[0].query, "device_id=device-1")
	assert.Equal(t, "Bearer user-token", reqs[0].auth)
	assert.Equal(t, []any{"spotify:track:abc"}, reqs[0].body["uris"])

	assert.Equal(t, "/me/player/repeat", reqs[1].path)
	assert.Contains(t, reqs[1].query, "state=track")
}

func TestPlayFailure(t *testing.T) {
	srv, requests := newSpotifyServer(t, http.StatusNotFound)
	p := NewPlayer("user-token", "", WithBaseURL(srv.URL+"/"))

	err := p.Play(context.Background(), "spotify:track:abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spotify play spotify:track:abc")
	assert.Len(t, requests(), 1, "repeat is not set when play fails")
}

func TestLogPlayer(t *testing.T) {
	assert.NoError(t, LogPlayer{}.Play(context.Background(), "spotify:track:abc"))
}
