package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if ChatMessages == nil || GuessMatches == nil || SlotsResolved == nil {
		t.Fatal("counters not initialized")
	}
	if AnswerLatency == nil {
		t.Error("AnswerLatency histogram not initialized")
	}
	if PlayersGauge == nil || ChatConnectedGauge == nil {
		t.Error("gauges not initialized")
	}
}

func TestCounterHelpers(t *testing.T) {
	Init()

	before := counterValue(t, ChatMessages)
	IncChatMessage()
	if got := counterValue(t, ChatMessages); got != before+1 {
		t.Errorf("ChatMessages = %v, want %v", got, before+1)
	}

	title := GuessMatches.WithLabelValues("title")
	before = counterValue(t, title)
	IncMatch("title")
	if got := counterValue(t, title); got != before+1 {
		t.Errorf("title matches = %v, want %v", got, before+1)
	}

	credits, points := counterValue(t, CreditsAwarded), counterValue(t, PointsAwarded)
	RecordCredit(3, 4.2)
	if got := counterValue(t, CreditsAwarded); got != credits+1 {
		t.Errorf("CreditsAwarded = %v, want %v", got, credits+1)
	}
	if got := counterValue(t, PointsAwarded); got != points+3 {
		t.Errorf("PointsAwarded = %v, want %v", got, points+3)
	}
}

func TestGaugeHelpers(t *testing.T) {
	Init()

	SetChatConnected(true)
	if v := gaugeValue(t, ChatConnectedGauge); v != 1 {
		t.Errorf("chat connected = %v, want 1", v)
	}
	SetChatConnected(false)
	if v := gaugeValue(t, ChatConnectedGauge); v != 0 {
		t.Errorf("chat connected = %v, want 0", v)
	}

	SetPlayers(12)
	if v := gaugeValue(t, PlayersGauge); v != 12 {
		t.Errorf("players = %v, want 12", v)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("expected empty correlation id")
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
