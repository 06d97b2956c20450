package server

import (
	"net/http"
)

// HandleGame returns the public view of the current track.
func (h *Handlers) HandleGame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.View())
}

// HandleLeaderboard lists players by rank. q filters on display name and
// limit caps the number of entries.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	players := h.engine.Leaderboard(r.URL.Query().Get("q"))
	if limit := parseIntQuery(r, "limit", 0); limit > 0 && limit < len(players) {
		players = players[:limit]
	}
	writeJSON(w, http.StatusOK, players)
}

// HandlePodium returns the first three rank groups.
func (h *Handlers) HandlePodium(w http.ResponseWriter, r *http.Request) {
	steps := h.engine.Podium()
	if steps == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, steps)
}
