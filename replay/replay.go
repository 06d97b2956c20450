// Package replay drives a game from a recorded transcript of chat messages
// and operator actions, on a fake clock, so a session can be re-scored
// offline or a rule change tried against real chat.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/validation"
)

// Event types.
const (
	TypeChat   = "chat"
	TypeNext   = "next"
	TypeReveal = "reveal"
	TypeCancel = "cancel"
	TypeAdjust = "adjust"
)

// Event is one transcript line. AtMs is relative to the start of the
// transcript.
type Event struct {
	AtMs   int64  `json:"atMs" validate:"gte=0"`
	Type   string `json:"type" validate:"oneof=chat next reveal cancel adjust"`
	Nick   string `json:"nick,omitempty" validate:"required_if=Type chat"`
	UserID string `json:"userId,omitempty" validate:"required_if=Type chat"`
	Text   string `json:"text,omitempty"`
	Delta  int    `json:"delta,omitempty" validate:"omitempty,oneof=-1 1"`

	line int
}

// Parse reads a JSONL transcript. Blank lines and lines starting with '#'
// are skipped. Events are returned in time order; events at the same time
// keep their file order.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if err := validation.Validate(&ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		ev.line = n
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].AtMs < events[j].AtMs })
	return events, nil
}

// Result summarizes a replay.
type Result struct {
	Applied int
	// Rejected lists operator actions the engine refused, with their line.
	Rejected []string
}

// Run applies events to engine, moving clock forward to each event time and
// resolving the acceptance windows that closed on the way. The engine must
// have been built with clock.
func Run(ctx context.Context, engine *game.Engine, clock *clockwork.FakeClock, events []Event) (Result, error) {
	var res Result
	start := clock.Now()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if d := start.Add(time.Duration(ev.AtMs) * time.Millisecond).Sub(clock.Now()); d > 0 {
			clock.Advance(d)
		}
		engine.FlushExpired()

		if err := apply(ctx, engine, ev); err != nil {
			if !refused(err) {
				return res, fmt.Errorf("line %d: %w", ev.line, err)
			}
			res.Rejected = append(res.Rejected, fmt.Sprintf("line %d: %s: %v", ev.line, ev.Type, err))
			continue
		}
		res.Applied++
	}
	return res, nil
}

func apply(ctx context.Context, engine *game.Engine, ev Event) error {
	switch ev.Type {
	case TypeChat:
		engine.OnChatMessage(ev.Nick, ev.UserID, ev.Text)
		return nil
	case TypeNext:
		_, err := engine.NextTrack(ctx)
		return err
	case TypeReveal:
		return engine.Reveal(ctx)
	case TypeCancel:
		return engine.CancelLastTrack()
	case TypeAdjust:
		return engine.AdjustScore(ev.UserID, ev.Delta)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// refused reports errors that an operator could have hit live; the replay
// goes on after them.
func refused(err error) bool {
	for _, target := range []error{
		game.ErrNoTrack, game.ErrPlaylistDone, game.ErrNothingToCancel, game.ErrBusy,
		ledger.ErrUnknownPlayer, ledger.ErrAdjustment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
