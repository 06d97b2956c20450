// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatMessages     prometheus.Counter
	ScoreCommands    prometheus.Counter
	GuessMatches     *prometheus.CounterVec // by guessable kind
	CreditsAwarded   prometheus.Counter
	PointsAwarded    prometheus.Counter
	SlotsResolved    *prometheus.CounterVec // by reason: guessed|timer|revealed
	TracksStarted    prometheus.Counter
	TracksFinished   prometheus.Counter
	PointReversals   prometheus.Counter
	PersistFailures  prometheus.Counter
	ChatSendFailures prometheus.Counter

	// Histograms (seconds)
	AnswerLatency prometheus.Observer

	// Gauges
	PlayersGauge       prometheus.Gauge
	TracksRemaining    prometheus.Gauge
	ChatConnectedGauge prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_chat_messages_total", Help: "Chat messages handed to the game engine"})
		ScoreCommands = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_score_commands_total", Help: "!score commands answered"})
		GuessMatches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "blindtest_guess_matches_total", Help: "Chat messages that matched a guessable"}, []string{"kind"})
		CreditsAwarded = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_credits_awarded_total", Help: "Credits paid out to players"})
		PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_points_awarded_total", Help: "Points paid out to players"})
		SlotsResolved = promauto.NewCounterVec(prometheus.CounterOpts{Name: "blindtest_guessables_resolved_total", Help: "Guessables resolved"}, []string{"reason"})
		TracksStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_tracks_started_total", Help: "Tracks started"})
		TracksFinished = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_tracks_finished_total", Help: "Tracks finished"})
		PointReversals = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_point_reversals_total", Help: "Track point cancellations"})
		PersistFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_persist_failures_total", Help: "State documents that could not be saved"})
		ChatSendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "blindtest_chat_send_failures_total", Help: "Chat messages or whispers that could not be sent"})
		AnswerLatency = promauto.NewHistogram(prometheus.HistogramOpts{Name: "blindtest_answer_latency_seconds", Help: "Time from track start to a credited guess", Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90}})
		PlayersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "blindtest_players", Help: "Players on the leaderboard"})
		TracksRemaining = promauto.NewGauge(prometheus.GaugeOpts{Name: "blindtest_tracks_remaining", Help: "Playlist tracks not yet done"})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "blindtest_chat_connected", Help: "Chat connection state connected=1 disconnected=0"})
	})
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncChatMessage counts one chat message.
func IncChatMessage() { inc(ChatMessages) }

// IncScoreCommand counts one answered !score.
func IncScoreCommand() { inc(ScoreCommands) }

// IncMatch counts a matched guess for a guessable kind.
func IncMatch(kind string) {
	if GuessMatches != nil {
		GuessMatches.WithLabelValues(kind).Inc()
	}
}

// RecordCredit counts one paid credit.
func RecordCredit(points int, latencySeconds float64) {
	inc(CreditsAwarded)
	if PointsAwarded != nil {
		PointsAwarded.Add(float64(points))
	}
	if AnswerLatency != nil {
		AnswerLatency.Observe(latencySeconds)
	}
}

// IncSlotResolved counts a resolved guessable.
func IncSlotResolved(reason string) {
	if SlotsResolved != nil {
		SlotsResolved.WithLabelValues(reason).Inc()
	}
}

func IncTrackStarted()    { inc(TracksStarted) }
func IncTrackFinished()   { inc(TracksFinished) }
func IncPointReversal()   { inc(PointReversals) }
func IncPersistFailure()  { inc(PersistFailures) }
func IncChatSendFailure() { inc(ChatSendFailures) }

// SetPlayers records the leaderboard size.
func SetPlayers(n int) {
	if PlayersGauge != nil {
		PlayersGauge.Set(float64(n))
	}
}

// SetTracksRemaining records how many tracks are left.
func SetTracksRemaining(n int) {
	if TracksRemaining != nil {
		TracksRemaining.Set(float64(n))
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(connected bool) {
	if ChatConnectedGauge != nil {
		if connected {
			ChatConnectedGauge.Set(1)
		} else {
			ChatConnectedGauge.Set(0)
		}
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
