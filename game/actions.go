package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/session"
	"github.com/onnwee/blindtest/similarity"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
)

// NextTrack reveals the active track, paying every pending credit, then
// starts the next one. Playback is started before the new track becomes
// active; a playback failure leaves the engine with no active track and
// the playlist position unchanged.
func (e *Engine) NextTrack(ctx context.Context) (idx int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "game.next_track")
	defer func() { telemetry.EndSpan(span, err) }()

	var out outbox
	e.mu.Lock()
	if e.advancing {
		e.mu.Unlock()
		return -1, ErrBusy
	}
	e.revealLocked(&out)
	next, ok := e.progress.Next(e.rng)
	if !ok {
		e.mu.Unlock()
		out.run()
		return -1, ErrPlaylistDone
	}
	ref := e.progress.Tracks[next].PlayableRef
	gen := e.gen
	e.advancing = true
	e.mu.Unlock()
	out.run()
	span.SetAttributes(attribute.Int("track.index", next))

	if e.playback != nil && ref != "" {
		if perr := e.playback.Play(ctx, ref); perr != nil {
			e.mu.Lock()
			e.advancing = false
			e.mu.Unlock()
			return -1, fmt.Errorf("play track %d: %w", next, perr)
		}
	}

	out = outbox{}
	e.mu.Lock()
	e.advancing = false
	if e.gen != gen {
		// Reset or Restore ran while the player was starting.
		e.mu.Unlock()
		return -1, ErrBusy
	}
	e.startLocked(&out, next)
	e.mu.Unlock()
	out.run()
	return next, nil
}

// Reveal resolves every open guessable of the active track and finishes it.
func (e *Engine) Reveal(ctx context.Context) error {
	_, span := telemetry.StartSpan(ctx, "game.reveal")
	var out outbox
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		telemetry.EndSpan(span, ErrNoTrack)
		return ErrNoTrack
	}
	e.revealLocked(&out)
	e.mu.Unlock()
	out.run()
	telemetry.EndSpan(span, nil)
	return nil
}

// CancelLastTrack reverts the points scored on the last finished track.
// Progress is not rewound. It can be applied once per track.
func (e *Engine) CancelLastTrack() error {
	var out outbox
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		out.run()
	}()
	t := e.progress.Active()
	if e.active || e.snapshot.Empty() || t == nil || !t.Done {
		return ErrNothingToCancel
	}
	e.ledger.Restore(e.snapshot)
	e.snapshot = ledger.Snapshot{}
	telemetry.IncPointReversal()
	e.log.Info("track points cancelled", slog.Int("track", e.progress.Current))
	e.emitLeaderboardLocked(&out)
	e.persistLocked(&out)
	return nil
}

// AdjustScore applies an operator correction of +1 or -1.
func (e *Engine) AdjustScore(playerID string, delta int) error {
	var out outbox
	e.mu.Lock()
	if err := e.ledger.ManualAdjust(playerID, delta); err != nil {
		e.mu.Unlock()
		return err
	}
	e.emitLeaderboardLocked(&out)
	e.mu.Unlock()
	out.run()
	return nil
}

// LoadPlaylist replaces the playlist and resets progress. Players and
// scores are kept; credits still waiting on the active track are paid
// first.
func (e *Engine) LoadPlaylist(ms []track.Metadata) error {
	var out outbox
	e.mu.Lock()
	if e.advancing {
		e.mu.Unlock()
		return ErrBusy
	}
	e.revealLocked(&out)
	e.stopTimersLocked()
	e.active = false
	e.slots = nil
	e.order = nil
	e.gen++
	e.snapshot = ledger.Snapshot{}
	e.progress = session.NewProgress(e.builder.BuildAll(ms), e.settings.Shuffle)
	telemetry.SetTracksRemaining(e.progress.Remaining())
	e.log.Info("playlist loaded", slog.Int("tracks", len(ms)))
	e.persistLocked(&out)
	e.mu.Unlock()
	out.run()
	return nil
}

func (e *Engine) editableLocked(trackIndex int) (*track.Track, error) {
	if trackIndex < 0 || trackIndex >= e.progress.Total() {
		return nil, fmt.Errorf("track %d: %w", trackIndex, track.ErrIndex)
	}
	if (e.active || e.advancing) && trackIndex == e.progress.Current {
		e.log.Debug("edit of the active track ignored", slog.Int("track", trackIndex))
		return nil, ErrTrackActive
	}
	return &e.progress.Tracks[trackIndex], nil
}

// SetVisibility changes a guessable of a track that is not being played.
func (e *Engine) SetVisibility(trackIndex, guessableIndex int, v track.Visibility) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.editableLocked(trackIndex)
	if err != nil {
		return err
	}
	return t.SetVisibility(guessableIndex, v)
}

// AddMisc appends an extra answer to a track that is not being played.
func (e *Engine) AddMisc(trackIndex int, value string, v track.Visibility) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.editableLocked(trackIndex)
	if err != nil {
		return err
	}
	e.builder.AddMisc(t, value, v)
	return nil
}

// Settings returns the current rules.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings replaces the rules. A new acceptance delay applies to
// windows opened afterwards.
func (e *Engine) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m, err := similarity.ForName(s.MatchAlgorithm)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	e.matcher = m
	e.progress.Shuffle = s.Shuffle
	return nil
}

// Reset stops the game, clears players and marks every track not done.
func (e *Engine) Reset() {
	var out outbox
	e.mu.Lock()
	e.stopTimersLocked()
	e.active = false
	e.slots = nil
	e.order = nil
	e.gen++
	e.snapshot = ledger.Snapshot{}
	e.scoreQueue = nil
	e.ledger.Reset()
	e.progress.Reset()
	telemetry.SetTracksRemaining(e.progress.Remaining())
	e.log.Info("game reset")
	e.emitLeaderboardLocked(&out)
	e.persistLocked(&out)
	e.mu.Unlock()
	out.run()
}

// Backup writes the current progress and leaderboard synchronously.
func (e *Engine) Backup(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "game.backup")
	defer func() { telemetry.EndSpan(span, err) }()
	if e.persister == nil {
		return nil
	}
	data, err := e.Export()
	if err != nil {
		return err
	}
	return e.persister.Save(ctx, data)
}

// Shutdown pays the credits of the active track, writes a final backup and
// stops every timer. The engine accepts no more guesses afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Reveal(ctx); err != nil && !errors.Is(err, ErrNoTrack) {
		return err
	}
	err := e.Backup(ctx)
	e.Close()
	return err
}

// Export encodes the current progress and leaderboard.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	p, players := e.progress.Clone(), e.ledger.Players()
	e.mu.Unlock()
	return session.Encode(p, players)
}

// Restore replaces progress and players with a saved state. No track is
// active afterwards; the next NextTrack continues with the first track not
// done.
func (e *Engine) Restore(data []byte) error {
	p, players, err := session.Decode(data)
	if err != nil {
		return err
	}
	var out outbox
	e.mu.Lock()
	e.stopTimersLocked()
	e.active = false
	e.slots = nil
	e.order = nil
	e.gen++
	e.snapshot = ledger.Snapshot{}
	e.settings.Shuffle = p.Shuffle
	e.progress = p
	e.ledger.Replace(players)
	telemetry.SetTracksRemaining(p.Remaining())
	e.log.Info("state restored", slog.Int("tracks", p.Total()), slog.Int("done", p.DoneCount), slog.Int("players", len(players)))
	e.emitLeaderboardLocked(&out)
	e.mu.Unlock()
	out.run()
	return nil
}
