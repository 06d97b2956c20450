package ledger

// Snapshot is a point-in-time copy of scores and answer counts, used to
// revert the points of a finished track.
type Snapshot struct {
	players map[string]Player
}

// Snapshot captures the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Snapshot{players: make(map[string]Player, len(l.players))}
	for id, p := range l.players {
		s.players[id] = *p
	}
	return s
}

// Empty reports whether the snapshot was never taken.
func (s Snapshot) Empty() bool { return s.players == nil }

// Restore puts scores and answer counts back to s. Players created after s
// stay on the board with zeroed score and counts. Display names, avatars
// and fastest answer times are kept as they are now.
func (l *Ledger) Restore(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, p := range l.players {
		old, ok := s.players[id]
		fastest := p.Stats.FastestAnswerMs
		if ok {
			p.Score = old.Score
			p.Stats = old.Stats
		} else {
			p.Score = 0
			p.Stats = Stats{}
		}
		p.Stats.FastestAnswerMs = fastest
	}
	for id, old := range s.players {
		if _, ok := l.players[id]; !ok {
			cp := old
			l.players[id] = &cp
		}
	}
	l.rerank()
}
