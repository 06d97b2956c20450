// Package ledger owns player scores, ranks and answer statistics.
//
// Every mutation goes through a Ledger method that takes the write lock and
// recomputes ranks before returning, so readers never see a half-applied
// batch.
package ledger

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrAdjustment    = errors.New("manual adjustment must be +1 or -1")
)

// Stats are the per-player answer statistics.
type Stats struct {
	Answers    int `json:"answers"`
	FirstCount int `json:"firstCount"`
	ComboCount int `json:"comboCount"`
	// FastestAnswerMs is 0 until the player is credited once.
	FastestAnswerMs int64 `json:"fastestAnswerMs"`
}

// Player is a leaderboard entry. Values returned by the Ledger are copies.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
	Stats       Stats  `json:"stats"`
}

// Credit is one player's share of a resolved guessable.
type Credit struct {
	PlayerID string
	Points   int
	First    bool
	Combo    bool
	// Latency is the time from track start to the credited message.
	Latency time.Duration
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	players map[string]*Player
	ranked  []*Player
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{players: make(map[string]*Player)}
}

// InitPlayer registers id if unknown and records displayName as the
// latest seen name. It never resets score or stats and reports whether the
// player was created.
func (l *Ledger) InitPlayer(id, displayName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.players[id]; ok {
		if displayName != "" {
			p.DisplayName = displayName
		}
		return false
	}
	l.players[id] = &Player{ID: id, DisplayName: displayName}
	l.rerank()
	return true
}

// AddPoints adds delta to id's score.
func (l *Ledger) AddPoints(id string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.players[id]
	if !ok {
		return fmt.Errorf("add points to %s: %w", id, ErrUnknownPlayer)
	}
	p.Score += delta
	l.rerank()
	return nil
}

// ManualAdjust applies an operator correction of exactly +1 or -1.
func (l *Ledger) ManualAdjust(id string, delta int) error {
	if delta != 1 && delta != -1 {
		return ErrAdjustment
	}
	return l.AddPoints(id, delta)
}

// RecordCredits applies the points and stats of one resolved guessable.
// Either every credit is applied or, if one names an unknown player, none.
func (l *Ledger) RecordCredits(credits []Credit) error {
	if len(credits) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range credits {
		if _, ok := l.players[c.PlayerID]; !ok {
			return fmt.Errorf("record credit for %s: %w", c.PlayerID, ErrUnknownPlayer)
		}
	}
	for _, c := range credits {
		p := l.players[c.PlayerID]
		p.Score += c.Points
		p.Stats.Answers++
		if c.First {
			p.Stats.FirstCount++
		}
		if c.Combo {
			p.Stats.ComboCount++
		}
		if ms := c.Latency.Milliseconds(); ms >= 0 && (p.Stats.FastestAnswerMs == 0 || ms < p.Stats.FastestAnswerMs) {
			p.Stats.FastestAnswerMs = max(ms, 1)
		}
	}
	l.rerank()
	return nil
}

// SetAvatar stores the profile image of id. Unknown ids are ignored.
func (l *Ledger) SetAvatar(id, url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.players[id]; ok {
		p.Avatar = url
	}
}

// Get returns a copy of the player.
func (l *Ledger) Get(id string) (Player, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Len returns the number of players.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.players)
}

// Players returns every player in leaderboard order.
func (l *Ledger) Players() []Player {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Player, len(l.ranked))
	for i, p := range l.ranked {
		out[i] = *p
	}
	return out
}

// Search returns the players whose display name contains filter,
// case-insensitively, in leaderboard order.
func (l *Ledger) Search(filter string) []Player {
	filter = strings.ToLower(strings.TrimSpace(filter))
	all := l.Players()
	if filter == "" {
		return all
	}
	out := all[:0]
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.DisplayName), filter) {
			out = append(out, p)
		}
	}
	return out
}

// MissingAvatars returns up to limit player ids without an avatar, in rank
// order. Ids for which skip reports true are passed over; skip may be nil.
func (l *Ledger) MissingAvatars(limit int, skip func(id string) bool) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for _, p := range l.ranked {
		if len(ids) >= limit {
			break
		}
		if p.Avatar == "" && (skip == nil || !skip(p.ID)) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Replace swaps the whole player set, e.g. after loading a saved game.
// Ranks are recomputed; the Rank field of the input is ignored.
func (l *Ledger) Replace(players []Player) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.players = make(map[string]*Player, len(players))
	for _, p := range players {
		cp := p
		l.players[p.ID] = &cp
	}
	l.rerank()
}

// Reset removes every player.
func (l *Ledger) Reset() {
	l.Replace(nil)
}

// rerank sorts players by score, then name, then id, and assigns standard
// competition ranks ("1224"). Callers hold the write lock.
func (l *Ledger) rerank() {
	ranked := make([]*Player, 0, len(l.players))
	for _, p := range l.players {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
	for i, p := range ranked {
		if i == 0 || p.Score != ranked[i-1].Score {
			p.Rank = i + 1
		} else {
			p.Rank = ranked[i-1].Rank
		}
	}
	l.ranked = ranked
}

// PodiumStep groups the players sharing one of the first three ranks.
type PodiumStep struct {
	Rank    int      `json:"rank"`
	Score   int      `json:"score"`
	Players []Player `json:"players"`
}

// Podium returns the rank groups 1 to 3 that have players.
func (l *Ledger) Podium() []PodiumStep {
	var steps []PodiumStep
	for _, p := range l.Players() {
		if p.Rank > 3 {
			break
		}
		if n := len(steps); n > 0 && steps[n-1].Rank == p.Rank {
			steps[n-1].Players = append(steps[n-1].Players, p)
			continue
		}
		steps = append(steps, PodiumStep{Rank: p.Rank, Score: p.Score, Players: []Player{p}})
	}
	return steps
}

// PickLoser picks uniformly among players with a positive score who are
// not on the podium.
func (l *Ledger) PickLoser(rng *rand.Rand) (Player, bool) {
	var losers []Player
	for _, p := range l.Players() {
		if p.Rank > 3 && p.Score > 0 {
			losers = append(losers, p)
		}
	}
	if len(losers) == 0 {
		return Player{}, false
	}
	if rng == nil {
		return losers[rand.IntN(len(losers))], true
	}
	return losers[rng.IntN(len(losers))], true
}
