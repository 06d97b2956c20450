package game

import (
	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/track"
)

// GuessableView is a guessable as the audience may see it.
type GuessableView struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Resolved bool   `json:"resolved"`
	// Answer is empty until the guessable is resolved, unless it is locked
	// and therefore shown from the start.
	Answer  string   `json:"answer,omitempty"`
	Credits []Credit `json:"credits,omitempty"`
	// Pending counts players waiting for the acceptance window to close.
	Pending *int `json:"pending,omitempty"`
}

// View is the public game state.
type View struct {
	Active      bool            `json:"active"`
	TrackIndex  int             `json:"trackIndex"`
	DoneCount   int             `json:"doneCount"`
	TotalTracks int             `json:"totalTracks"`
	CoverURL    string          `json:"coverUrl,omitempty"`
	Guessables  []GuessableView `json:"guessables"`
}

// View returns what the audience may see of the current track. Hidden
// guessables are left out and the cover is shown only once the track is
// done.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{
		Active:      e.active,
		TrackIndex:  e.progress.Current,
		DoneCount:   e.progress.DoneCount,
		TotalTracks: e.progress.Total(),
		Guessables:  []GuessableView{},
	}
	t := e.progress.Active()
	if t == nil {
		return v
	}
	if t.Done {
		v.CoverURL = t.CoverURL
	}
	for i, g := range t.Guessables {
		if g.Visibility == track.Hidden {
			continue
		}
		gv := GuessableView{Index: i, Kind: g.Kind.String(), Resolved: t.Done}
		if i < len(e.slots) {
			s := e.slots[i]
			gv.Resolved = s.resolved
			if s.resolved {
				gv.Credits = append([]Credit(nil), s.credits...)
			} else if e.settings.PreviewGuessNumber {
				n := len(s.credits)
				gv.Pending = &n
			}
		}
		if gv.Resolved || g.Visibility.VisibleImmediately() {
			gv.Answer = g.Original
		}
		v.Guessables = append(v.Guessables, gv)
	}
	return v
}

// TrackView is a playlist entry with its answers, for operators.
type TrackView struct {
	Index       int              `json:"index"`
	Done        bool             `json:"done"`
	Active      bool             `json:"active"`
	CoverURL    string           `json:"coverUrl,omitempty"`
	PlayableRef string           `json:"playableRef,omitempty"`
	Guessables  []AdminGuessable `json:"guessables"`
}

// AdminGuessable exposes the answers and accepted forms of a guessable.
type AdminGuessable struct {
	Original      string   `json:"original"`
	Kind          string   `json:"kind"`
	Visibility    string   `json:"visibility"`
	AcceptedForms []string `json:"acceptedForms"`
}

// Tracks lists the playlist with every answer.
func (e *Engine) Tracks() []TrackView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TrackView, 0, e.progress.Total())
	for i, t := range e.progress.Tracks {
		tv := TrackView{
			Index:       i,
			Done:        t.Done,
			Active:      e.active && i == e.progress.Current,
			CoverURL:    t.CoverURL,
			PlayableRef: t.PlayableRef,
			Guessables:  make([]AdminGuessable, 0, len(t.Guessables)),
		}
		for _, g := range t.Guessables {
			tv.Guessables = append(tv.Guessables, AdminGuessable{
				Original:      g.Original,
				Kind:          g.Kind.String(),
				Visibility:    g.Visibility.String(),
				AcceptedForms: append([]string(nil), g.AcceptedForms...),
			})
		}
		out = append(out, tv)
	}
	return out
}

// Leaderboard returns ranked players whose name contains filter.
func (e *Engine) Leaderboard(filter string) []ledger.Player {
	if filter == "" {
		return e.ledger.Players()
	}
	return e.ledger.Search(filter)
}

// Podium returns the first three rank groups.
func (e *Engine) Podium() []ledger.PodiumStep {
	return e.ledger.Podium()
}

// PickLoser draws a random scoring player off the podium.
func (e *Engine) PickLoser() (ledger.Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.PickLoser(e.rng)
}

// MissingAvatars returns up to limit player ids without an avatar, leaving
// out the ones skip reports.
func (e *Engine) MissingAvatars(limit int, skip func(id string) bool) []string {
	return e.ledger.MissingAvatars(limit, skip)
}

// SetAvatar stores a profile image. Avatars do not change ranks, so no
// event is emitted.
func (e *Engine) SetAvatar(playerID, url string) {
	e.ledger.SetAvatar(playerID, url)
}
