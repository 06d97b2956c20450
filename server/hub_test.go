package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialHub(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.handler)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) rawEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env rawEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if env.Type == typ {
			return env
		}
	}
}

func TestHubSendsViewOnConnect(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	conn := dialHub(t, s)

	env := readUntil(t, conn, EventGame)
	var view struct {
		Active      bool `json:"active"`
		TotalTracks int  `json:"totalTracks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.False(t, view.Active)
	assert.Equal(t, 2, view.TotalTracks)
}

func TestHubAnswersPing(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	conn := dialHub(t, s)
	readUntil(t, conn, EventGame)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestHubBroadcastsEngineEvents(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	conn := dialHub(t, s)
	readUntil(t, conn, EventGame)

	_, err := s.engine.NextTrack(context.Background())
	require.NoError(t, err)
	env := readUntil(t, conn, EventTrackStarted)
	assert.JSONEq(t, `{"trackIndex":0}`, string(env.Data))

	s.engine.OnChatMessage("Alice", "u1", "the police")
	env = readUntil(t, conn, EventGuessableResolved)
	var resolved struct {
		GuessableIndex int    `json:"guessableIndex"`
		Answer         string `json:"answer"`
		Reason         string `json:"reason"`
		Credits        []struct {
			PlayerID string `json:"playerId"`
			Points   int    `json:"points"`
		} `json:"credits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, 1, resolved.GuessableIndex)
	assert.Equal(t, "The Police", resolved.Answer)
	assert.Equal(t, "guessed", resolved.Reason)
	require.Len(t, resolved.Credits, 1)
	assert.Equal(t, "u1", resolved.Credits[0].PlayerID)

	env = readUntil(t, conn, EventLeaderboard)
	assert.Contains(t, string(env.Data), `"displayName":"Alice"`)

	require.NoError(t, s.engine.Reveal(context.Background()))
	env = readUntil(t, conn, EventTrackFinished)
	assert.JSONEq(t, `{"trackIndex":0}`, string(env.Data))
}
