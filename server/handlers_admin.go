package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
	"github.com/onnwee/blindtest/validation"
)

const maxPlaylistBytes = 4 << 20

// HandleNextTrack reveals the current track and starts the next one.
func (h *Handlers) HandleNextTrack(w http.ResponseWriter, r *http.Request) {
	idx, err := h.engine.NextTrack(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"trackIndex": idx})
}

// HandleReveal resolves everything left on the current track.
func (h *Handlers) HandleReveal(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reveal(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCancelLast takes back the points of the last finished track.
func (h *Handlers) HandleCancelLast(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelLastTrack(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Leaderboard(""))
}

// HandleReset clears players and progress.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	telemetry.LoggerWithCorr(r.Context()).Info("game reset by operator")
	w.WriteHeader(http.StatusNoContent)
}

// HandleBackup writes the game to the store and waits for the result.
func (h *Handlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Backup(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePickLoser draws a random player off the podium.
func (h *Handlers) HandlePickLoser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.engine.PickLoser()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no eligible player"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type adjustRequest struct {
	Delta int `json:"delta" validate:"oneof=-1 1"`
}

// HandleAdjust applies a +1/-1 correction to a player.
func (h *Handlers) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := validation.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.AdjustScore(id, req.Delta); err != nil {
		writeError(w, r, err)
		return
	}
	p, _ := h.engine.Ledger().Get(id)
	writeJSON(w, http.StatusOK, p)
}

// HandleTracks lists the playlist with answers, for operators.
func (h *Handlers) HandleTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Tracks())
}

func trackIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("track %q: %w", chi.URLParam(r, "index"), track.ErrIndex)
	}
	return idx, nil
}

type visibilityRequest struct {
	Guessable  int    `json:"guessable" validate:"gte=0"`
	Visibility string `json:"visibility" validate:"oneof=guessable locked hidden"`
}

// HandleTrackVisibility changes one guessable of a track that is not playing.
func (h *Handlers) HandleTrackVisibility(w http.ResponseWriter, r *http.Request) {
	idx, err := trackIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req visibilityRequest
	if err := validation.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := track.ParseVisibility(req.Visibility)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalidBody, err))
		return
	}
	if err := h.engine.SetVisibility(idx, req.Guessable, v); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type miscRequest struct {
	Value      string `json:"value" validate:"notblank"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=guessable locked hidden"`
}

// HandleTrackMisc adds an extra answer to a track that is not playing.
func (h *Handlers) HandleTrackMisc(w http.ResponseWriter, r *http.Request) {
	idx, err := trackIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req miscRequest
	if err := validation.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v := track.Open
	if req.Visibility != "" {
		if v, err = track.ParseVisibility(req.Visibility); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalidBody, err))
			return
		}
	}
	if err := h.engine.AddMisc(idx, req.Value, v); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePlaylist replaces the playlist. The body is JSON, or TOML when sent
// as application/toml.
func (h *Handlers) HandlePlaylist(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxPlaylistBytes)
	var p *track.Playlist
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/toml" {
		data, err := io.ReadAll(body)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalidBody, err))
			return
		}
		if p, err = track.ParsePlaylist(data, "toml"); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalidBody, err))
			return
		}
	} else {
		p = &track.Playlist{}
		if err := validation.DecodeJSON(body, p); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := h.engine.LoadPlaylist(p.Tracks); err != nil {
		writeError(w, r, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("playlist replaced", slog.String("name", p.Name), slog.Int("tracks", len(p.Tracks)))
	writeJSON(w, http.StatusOK, map[string]int{"tracks": len(p.Tracks)})
}

// HandleSettings returns the current game rules.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Settings())
}

// HandleUpdateSettings replaces the game rules.
func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s game.Settings
	if err := validation.DecodeJSON(r.Body, &s); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.engine.UpdateSettings(s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Settings())
}

type chatRequest struct {
	Nick   string `json:"nick" validate:"notblank"`
	UserID string `json:"userId" validate:"notblank"`
	Text   string `json:"text" validate:"required"`
}

// HandleChat injects a chat message as if it came from the channel.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := validation.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.engine.OnChatMessage(req.Nick, req.UserID, req.Text)
	w.WriteHeader(http.StatusAccepted)
}
