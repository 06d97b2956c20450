package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olahol/melody"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/ledger"
)

// Event types pushed on /ws.
const (
	EventGame              = "game"
	EventTrackStarted      = "trackStarted"
	EventGuessableResolved = "guessableResolved"
	EventLeaderboard       = "leaderboard"
	EventTrackFinished     = "trackFinished"
)

// Envelope is one websocket message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type trackRef struct {
	TrackIndex int `json:"trackIndex"`
}

// Hub pushes engine events to websocket clients. New clients first receive
// the current game view.
type Hub struct {
	m      *melody.Melody
	engine *game.Engine
	log    *slog.Logger
}

// NewHub returns a hub reading the initial view from engine. Register it
// with engine.Subscribe to receive events.
func NewHub(engine *game.Engine) *Hub {
	h := &Hub{
		m:      melody.New(),
		engine: engine,
		log:    slog.Default().With(slog.String("component", "ws")),
	}
	// overlays are served from other origins (OBS browser sources)
	h.m.Upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	h.m.HandleConnect(h.onConnect)
	h.m.HandleMessage(h.onMessage)
	return h
}

// HandleRequest upgrades the request to a websocket session.
func (h *Hub) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.m.HandleRequest(w, r); err != nil {
		h.log.Error("handling websocket request", slog.Any("err", err))
	}
}

// Close disconnects every client.
func (h *Hub) Close() error { return h.m.Close() }

func (h *Hub) onConnect(s *melody.Session) {
	data, err := json.Marshal(Envelope{Type: EventGame, Data: h.engine.View()})
	if err != nil {
		h.log.Error("marshalling game view", slog.Any("err", err))
		return
	}
	if err := s.Write(data); err != nil {
		h.log.Debug("sending game view", slog.Any("err", err))
	}
}

// onMessage answers heartbeats; clients have nothing else to say.
func (h *Hub) onMessage(s *melody.Session, msg []byte) {
	if bytes.Equal(msg, []byte("ping")) {
		if err := s.Write([]byte("pong")); err != nil {
			h.log.Debug("sending pong", slog.Any("err", err))
		}
	}
}

func (h *Hub) broadcast(typ string, v any) {
	data, err := json.Marshal(Envelope{Type: typ, Data: v})
	if err != nil {
		h.log.Error("marshalling event", slog.String("type", typ), slog.Any("err", err))
		return
	}
	if err := h.m.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
		h.log.Error("broadcasting event", slog.String("type", typ), slog.Any("err", err))
	}
}

func (h *Hub) TrackStarted(i int) { h.broadcast(EventTrackStarted, trackRef{TrackIndex: i}) }

func (h *Hub) GuessableResolved(e game.ResolvedEvent) { h.broadcast(EventGuessableResolved, e) }

func (h *Hub) LeaderboardChanged(players []ledger.Player) {
	h.broadcast(EventLeaderboard, players)
}

func (h *Hub) TrackFinished(i int) { h.broadcast(EventTrackFinished, trackRef{TrackIndex: i}) }
