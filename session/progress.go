// Package session tracks playlist progress and persists it together with
// the leaderboard as one consistent unit.
package session

import (
	"math/rand/v2"

	"github.com/onnwee/blindtest/track"
)

// Progress is the playlist position. It is not safe for concurrent use;
// the game engine serializes access.
type Progress struct {
	Tracks    []track.Track
	DoneCount int
	// Current is the index of the active track, or -1 before the first one.
	Current int
	Shuffle bool
}

// NewProgress starts a playlist with no active track.
func NewProgress(tracks []track.Track, shuffle bool) *Progress {
	return &Progress{Tracks: tracks, Current: -1, Shuffle: shuffle}
}

// Total returns the playlist length.
func (p *Progress) Total() int { return len(p.Tracks) }

// Remaining returns the number of tracks not yet done.
func (p *Progress) Remaining() int {
	n := 0
	for i := range p.Tracks {
		if !p.Tracks[i].Done {
			n++
		}
	}
	return n
}

// Active returns the current track, or nil.
func (p *Progress) Active() *track.Track {
	if p.Current < 0 || p.Current >= len(p.Tracks) {
		return nil
	}
	return &p.Tracks[p.Current]
}

// Next picks the next track to play: the first one not done, or, with
// shuffle, one chosen uniformly among those not done. It returns false
// when the playlist is exhausted.
func (p *Progress) Next(rng *rand.Rand) (int, bool) {
	var left []int
	for i := range p.Tracks {
		if !p.Tracks[i].Done {
			left = append(left, i)
		}
	}
	if len(left) == 0 {
		return -1, false
	}
	if !p.Shuffle {
		return left[0], true
	}
	if rng == nil {
		return left[rand.IntN(len(left))], true
	}
	return left[rng.IntN(len(left))], true
}

// Finish marks track i done and counts it. It reports false, and changes
// nothing, when i was already done or out of range.
func (p *Progress) Finish(i int) bool {
	if i < 0 || i >= len(p.Tracks) || p.Tracks[i].Done {
		return false
	}
	p.Tracks[i].Done = true
	p.DoneCount++
	return true
}

// Reset clears every done flag.
func (p *Progress) Reset() {
	for i := range p.Tracks {
		p.Tracks[i].Done = false
	}
	p.DoneCount = 0
	p.Current = -1
}

// Clone deep-copies p so it can be encoded without holding the game lock.
func (p *Progress) Clone() *Progress {
	out := *p
	out.Tracks = make([]track.Track, len(p.Tracks))
	for i, t := range p.Tracks {
		out.Tracks[i] = t.Clone()
	}
	return &out
}
