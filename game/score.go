package game

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
)

const (
	// scoreBatchWindow coalesces channel-mode !score requests.
	scoreBatchWindow = 2 * time.Second
	// announceLimit caps the names listed in a resolve announcement.
	announceLimit = 20
	// chatLineLimit is the longest message Twitch accepts.
	chatLineLimit = 500
)

func pointsLabel(score int) string {
	if score > 1 {
		return fmt.Sprintf("%d points", score)
	}
	return fmt.Sprintf("%d point", score)
}

func scoreLine(p ledger.Player) string {
	return fmt.Sprintf("%s is #%d [%s]", p.DisplayName, p.Rank, pointsLabel(p.Score))
}

func whisperLine(p ledger.Player) string {
	return fmt.Sprintf("You are #%d [%s]", p.Rank, pointsLabel(p.Score))
}

// announcement is the chat line posted when a guessable is resolved with
// credits.
func announcement(g track.Guessable, credits []Credit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ [%s] correctly guessed by ", g.Original)
	for i, c := range credits {
		if i == announceLimit {
			fmt.Fprintf(&b, ", and %d more", len(credits)-announceLimit)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s [+%d]", c.DisplayName, c.Points)
	}
	return b.String()
}

// joinLines packs parts into comma separated lines no longer than limit.
func joinLines(parts []string, limit int) []string {
	var lines []string
	var cur strings.Builder
	for _, p := range parts {
		if cur.Len() > 0 && cur.Len()+2+len(p) > limit {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(", ")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func (e *Engine) scoreCommandLocked(out *outbox, id string) {
	mode := e.settings.ScoreCommandMode
	if mode == ScoreDisabled || e.messenger == nil {
		return
	}
	p, ok := e.ledger.Get(id)
	if !ok {
		e.log.Debug("!score from unknown player", slog.String("player", id))
		return
	}
	telemetry.IncScoreCommand()

	switch mode {
	case ScoreWhisper:
		msg := whisperLine(p)
		out.add(func() { e.whisper(id, msg) })
	case ScoreChannel:
		for _, q := range e.scoreQueue {
			if q == id {
				return
			}
		}
		e.scoreQueue = append(e.scoreQueue, id)
		if e.scoreTimer == nil {
			e.scoreTimer = e.clock.AfterFunc(scoreBatchWindow, e.flushScores)
		}
	}
}

// flushScores answers the queued channel-mode requests with the ranks as
// they are now.
func (e *Engine) flushScores() {
	e.mu.Lock()
	ids := e.scoreQueue
	e.scoreQueue = nil
	e.scoreTimer = nil
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := e.ledger.Get(id); ok {
			parts = append(parts, scoreLine(p))
		}
	}
	e.mu.Unlock()

	for _, line := range joinLines(parts, chatLineLimit) {
		e.say(line)
	}
}
