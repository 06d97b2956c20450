package game

import (
	"time"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/track"
)

// Resolution reasons.
const (
	ReasonGuessed  = "guessed"
	ReasonTimer    = "timer"
	ReasonRevealed = "revealed"
)

// Credit is one player's share of a guessable.
type Credit struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Points      int    `json:"points"`
	First       bool   `json:"first"`
	Combo       bool   `json:"combo"`
	LatencyMs   int64  `json:"latencyMs"`
}

func (c Credit) ledgerCredit() ledger.Credit {
	return ledger.Credit{
		PlayerID: c.PlayerID,
		Points:   c.Points,
		First:    c.First,
		Combo:    c.Combo,
		Latency:  time.Duration(c.LatencyMs) * time.Millisecond,
	}
}

// ResolvedEvent describes a guessable that just became resolved.
type ResolvedEvent struct {
	TrackIndex     int             `json:"trackIndex"`
	GuessableIndex int             `json:"guessableIndex"`
	Guessable      track.Guessable `json:"-"`
	Answer         string          `json:"answer"`
	Kind           string          `json:"kind"`
	Reason         string          `json:"reason"`
	Credits        []Credit        `json:"credits"`
}

// Listener receives engine events. Calls happen after the engine has
// released its lock, in the order the state changes happened, on the
// goroutine that caused them (chat handler, timer or operator request).
type Listener interface {
	TrackStarted(trackIndex int)
	GuessableResolved(e ResolvedEvent)
	LeaderboardChanged(players []ledger.Player)
	TrackFinished(trackIndex int)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	OnTrackStarted       func(trackIndex int)
	OnGuessableResolved  func(e ResolvedEvent)
	OnLeaderboardChanged func(players []ledger.Player)
	OnTrackFinished      func(trackIndex int)
}

func (f ListenerFuncs) TrackStarted(i int) {
	if f.OnTrackStarted != nil {
		f.OnTrackStarted(i)
	}
}

func (f ListenerFuncs) GuessableResolved(e ResolvedEvent) {
	if f.OnGuessableResolved != nil {
		f.OnGuessableResolved(e)
	}
}

func (f ListenerFuncs) LeaderboardChanged(p []ledger.Player) {
	if f.OnLeaderboardChanged != nil {
		f.OnLeaderboardChanged(p)
	}
}

func (f ListenerFuncs) TrackFinished(i int) {
	if f.OnTrackFinished != nil {
		f.OnTrackFinished(i)
	}
}

// outbox collects side effects while the engine lock is held; run executes
// them after unlock.
type outbox struct {
	fns []func()
}

func (o *outbox) add(fn func()) { o.fns = append(o.fns, fn) }

func (o *outbox) run() {
	for _, fn := range o.fns {
		fn()
	}
}
