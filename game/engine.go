// Package game is the guess resolution engine: it matches chat messages
// against the active track, credits players, runs the acceptance-delay
// windows and drives track progression.
//
// All state lives behind one mutex. Chat messages, timer callbacks and
// operator actions each take the lock, update scoring state completely,
// and only then perform I/O (chat replies, listeners, persistence) from an
// outbox after unlocking.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/normalize"
	"github.com/onnwee/blindtest/session"
	"github.com/onnwee/blindtest/similarity"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
)

var (
	ErrNoTrack         = errors.New("no active track")
	ErrPlaylistDone    = errors.New("playlist finished")
	ErrNothingToCancel = errors.New("no finished track to cancel")
	ErrTrackActive     = errors.New("track is being played")
	ErrBusy            = errors.New("track change in progress")
)

// Messenger posts to the chat. Implementations must not block the caller
// for long; the engine calls them from chat and timer goroutines.
type Messenger interface {
	Say(ctx context.Context, text string) error
	Whisper(ctx context.Context, userID, text string) error
}

// Playback starts a track on the music player.
type Playback interface {
	Play(ctx context.Context, playableRef string) error
}

// Persister stores encoded game state. Submit must not block.
type Persister interface {
	Submit(data []byte)
	Save(ctx context.Context, data []byte) error
}

// Options configures an Engine. Every collaborator is optional.
type Options struct {
	Clock      clockwork.Clock
	Settings   Settings
	Normalizer *normalize.Normalizer
	Ledger     *ledger.Ledger
	Messenger  Messenger
	Playback   Playback
	Persister  Persister
	Rand       *rand.Rand
	Logger     *slog.Logger
}

type slot struct {
	resolved bool
	credits  []Credit
	timer    clockwork.Timer
	deadline time.Time
}

func (s *slot) creditedTo(id string) bool {
	for _, c := range s.credits {
		if c.PlayerID == id {
			return true
		}
	}
	return false
}

// Engine is the blind-test game. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	clock     clockwork.Clock
	rng       *rand.Rand
	log       *slog.Logger
	builder   *track.Builder
	ledger    *ledger.Ledger
	messenger Messenger
	playback  Playback
	persister Persister
	listeners []Listener

	settings Settings
	matcher  similarity.Matcher

	progress   *session.Progress
	active     bool
	advancing  bool
	gen        uint64
	slots      []slot
	order      []int
	trackStart time.Time
	snapshot   ledger.Snapshot
	// paid is set once the active track applied its first credit batch.
	paid bool

	scoreQueue []string
	scoreTimer clockwork.Timer
}

// New builds an engine with an empty playlist.
func New(opts Options) (*Engine, error) {
	settings := opts.Settings
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	matcher, err := similarity.ForName(settings.MatchAlgorithm)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		clock:     opts.Clock,
		rng:       opts.Rand,
		log:       opts.Logger,
		builder:   track.NewBuilder(opts.Normalizer),
		ledger:    opts.Ledger,
		messenger: opts.Messenger,
		playback:  opts.Playback,
		persister: opts.Persister,
		settings:  settings,
		matcher:   matcher,
		progress:  session.NewProgress(nil, settings.Shuffle),
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With(slog.String("component", "game"))
	if e.ledger == nil {
		e.ledger = ledger.New()
	}
	return e, nil
}

// Subscribe registers a listener for engine events.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Ledger exposes the player store for read access.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Close stops every pending timer without resolving anything.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
	if e.scoreTimer != nil {
		e.scoreTimer.Stop()
		e.scoreTimer = nil
	}
	e.scoreQueue = nil
}

// OnChatMessage handles one channel message from viewer id.
func (e *Engine) OnChatMessage(nick, id, text string) {
	if id == "" {
		return
	}
	telemetry.IncChatMessage()

	var out outbox
	e.mu.Lock()
	if _, known := e.ledger.Get(id); known || e.settings.AddEveryUser {
		if e.ledger.InitPlayer(id, nick) {
			e.emitLeaderboardLocked(&out)
		}
	}

	if strings.EqualFold(strings.TrimSpace(text), "!score") {
		e.scoreCommandLocked(&out, id)
		e.mu.Unlock()
		out.run()
		return
	}

	if e.active {
		e.guessLocked(&out, nick, id, normalize.LightClean(text))
	}
	e.mu.Unlock()
	out.run()
}

// guessLocked credits id on the first unresolved guessable the message
// matches, in title, artist, misc order. One message credits at most one
// guessable.
func (e *Engine) guessLocked(out *outbox, nick, id, proposition string) {
	if proposition == "" {
		return
	}
	t := e.progress.Active()
	for _, gi := range e.order {
		s := &e.slots[gi]
		g := t.Guessables[gi]
		if s.resolved || !g.Visibility.Scorable() || s.creditedTo(id) {
			continue
		}
		if !e.matchesLocked(g, proposition) {
			continue
		}

		delay := e.settings.delay()
		first := delay > 0 && len(s.credits) == 0
		combo := e.creditedElsewhereLocked(id, gi)
		points := 1
		if first {
			points++
		}
		if combo {
			points++
		}
		if e.ledger.InitPlayer(id, nick) {
			e.emitLeaderboardLocked(out)
		}
		c := Credit{
			PlayerID:    id,
			DisplayName: nick,
			Points:      points,
			First:       first,
			Combo:       combo,
			LatencyMs:   e.clock.Since(e.trackStart).Milliseconds(),
		}
		s.credits = append(s.credits, c)
		telemetry.IncMatch(g.Kind.String())
		e.log.Debug("guess matched",
			slog.String("player", nick),
			slog.Int("guessable", gi),
			slog.String("kind", g.Kind.String()),
			slog.Int("points", points))

		if delay == 0 {
			e.resolveLocked(out, gi, ReasonGuessed)
			return
		}
		if first {
			gen := e.gen
			s.deadline = e.clock.Now().Add(delay)
			s.timer = e.clock.AfterFunc(delay, func() { e.expire(gen, gi) })
		}
		return
	}
}

func (e *Engine) matchesLocked(g track.Guessable, proposition string) bool {
	for _, form := range g.AcceptedForms {
		if form != "" && e.matcher.Accepts(form, proposition) {
			return true
		}
	}
	return false
}

func (e *Engine) creditedElsewhereLocked(id string, gi int) bool {
	for j := range e.slots {
		if j != gi && e.slots[j].creditedTo(id) {
			return true
		}
	}
	return false
}

// expire is the acceptance-window timer callback.
func (e *Engine) expire(gen uint64, gi int) {
	var out outbox
	e.mu.Lock()
	if gen == e.gen && e.active && !e.slots[gi].resolved {
		e.resolveLocked(&out, gi, ReasonTimer)
	}
	e.mu.Unlock()
	out.run()
}

// FlushExpired resolves every guessable whose acceptance window has ended
// according to the engine clock and returns how many it resolved.
func (e *Engine) FlushExpired() int {
	var out outbox
	n := 0
	e.mu.Lock()
	if e.active {
		now := e.clock.Now()
		for _, gi := range e.order {
			s := &e.slots[gi]
			if !e.active {
				break
			}
			if !s.resolved && s.timer != nil && !now.Before(s.deadline) {
				e.resolveLocked(&out, gi, ReasonTimer)
				n++
			}
		}
	}
	e.mu.Unlock()
	out.run()
	return n
}

// resolveLocked is the single path that turns a guessable resolved: timer
// expiry, instant credits, Reveal and NextTrack all go through it. It pays
// every pending credit at once and finishes the track when nothing
// scorable is left.
func (e *Engine) resolveLocked(out *outbox, gi int, reason string) {
	if gi < 0 || gi >= len(e.slots) {
		panic(fmt.Sprintf("game: guessable %d out of range for %d slots", gi, len(e.slots)))
	}
	s := &e.slots[gi]
	if s.resolved {
		e.log.Debug("guessable already resolved", slog.Int("guessable", gi), slog.String("reason", reason))
		return
	}
	s.resolved = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if len(s.credits) > 0 {
		if !e.paid {
			e.snapshot = e.ledger.Snapshot()
			e.paid = true
		}
		batch := make([]ledger.Credit, len(s.credits))
		for i, c := range s.credits {
			batch[i] = c.ledgerCredit()
			telemetry.RecordCredit(c.Points, float64(c.LatencyMs)/1000)
		}
		if err := e.ledger.RecordCredits(batch); err != nil {
			e.log.Error("credits not recorded", slog.Int("guessable", gi), slog.Any("err", err))
		}
	}
	telemetry.IncSlotResolved(reason)

	t := e.progress.Active()
	ev := ResolvedEvent{
		TrackIndex:     e.progress.Current,
		GuessableIndex: gi,
		Guessable:      t.Guessables[gi],
		Answer:         t.Guessables[gi].Original,
		Kind:           t.Guessables[gi].Kind.String(),
		Reason:         reason,
		Credits:        append([]Credit(nil), s.credits...),
	}
	for _, l := range e.listeners {
		out.add(func() { l.GuessableResolved(ev) })
	}
	if len(ev.Credits) > 0 {
		if e.settings.ChatNotifications && e.messenger != nil {
			msg := announcement(t.Guessables[gi], ev.Credits)
			out.add(func() { e.say(msg) })
		}
		e.emitLeaderboardLocked(out)
	}

	if e.allResolvedLocked() {
		e.finishLocked(out)
	}
}

func (e *Engine) allResolvedLocked() bool {
	for i := range e.slots {
		if !e.slots[i].resolved {
			return false
		}
	}
	return true
}

// startLocked makes track idx active with fresh slots.
func (e *Engine) startLocked(out *outbox, idx int) {
	e.progress.Current = idx
	e.gen++
	t := e.progress.Active()
	e.slots = make([]slot, len(t.Guessables))
	for i, g := range t.Guessables {
		e.slots[i].resolved = !g.Visibility.Scorable()
	}
	e.order = kindOrder(t)
	e.trackStart = e.clock.Now()
	e.active = true
	e.snapshot = e.ledger.Snapshot()
	e.paid = false

	telemetry.IncTrackStarted()
	e.log.Info("track started", slog.Int("track", idx), slog.Int("scorable", t.ScorableCount()))
	for _, l := range e.listeners {
		out.add(func() { l.TrackStarted(idx) })
	}
	if e.allResolvedLocked() {
		e.finishLocked(out)
	}
}

// finishLocked marks the active track done and schedules a backup.
func (e *Engine) finishLocked(out *outbox) {
	idx := e.progress.Current
	e.active = false
	e.stopTimersLocked()
	if !e.progress.Finish(idx) {
		e.log.Debug("track already done", slog.Int("track", idx))
	}
	telemetry.IncTrackFinished()
	telemetry.SetTracksRemaining(e.progress.Remaining())
	e.log.Info("track finished", slog.Int("track", idx), slog.Int("done", e.progress.DoneCount))
	for _, l := range e.listeners {
		out.add(func() { l.TrackFinished(idx) })
	}
	e.persistLocked(out)
}

// revealLocked resolves every open guessable of the active track, paying
// pending credits.
func (e *Engine) revealLocked(out *outbox) {
	if !e.active {
		return
	}
	for _, gi := range e.order {
		if !e.active {
			return
		}
		if !e.slots[gi].resolved {
			e.resolveLocked(out, gi, ReasonRevealed)
		}
	}
	if e.active {
		e.finishLocked(out)
	}
}

func (e *Engine) stopTimersLocked() {
	for i := range e.slots {
		if t := e.slots[i].timer; t != nil {
			t.Stop()
			e.slots[i].timer = nil
		}
	}
}

func (e *Engine) emitLeaderboardLocked(out *outbox) {
	players := e.ledger.Players()
	telemetry.SetPlayers(len(players))
	for _, l := range e.listeners {
		out.add(func() { l.LeaderboardChanged(players) })
	}
}

func (e *Engine) persistLocked(out *outbox) {
	if e.persister == nil {
		return
	}
	p, players := e.progress.Clone(), e.ledger.Players()
	out.add(func() {
		data, err := session.Encode(p, players)
		if err != nil {
			e.log.Error("state not encoded", slog.Any("err", err))
			return
		}
		e.persister.Submit(data)
	})
}

func (e *Engine) say(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.messenger.Say(ctx, text); err != nil {
		telemetry.IncChatSendFailure()
		e.log.Warn("chat message not sent", slog.Any("err", err))
	}
}

func (e *Engine) whisper(userID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.messenger.Whisper(ctx, userID, text); err != nil {
		telemetry.IncChatSendFailure()
		e.log.Warn("whisper not sent", slog.String("user", userID), slog.Any("err", err))
	}
}

// kindOrder lists guessable indexes title first, then artists, then misc,
// keeping source order within a kind.
func kindOrder(t *track.Track) []int {
	order := make([]int, len(t.Guessables))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Guessables[order[a]].Kind < t.Guessables[order[b]].Kind
	})
	return order
}
