// Package server exposes the HTTP API: health, metrics, the public game view
// and its websocket feed, and the operator endpoints used to drive a game.
// Requests carry a correlation id so their logs can be followed end to end.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/telemetry"
)

// Options wires the router to the running game.
type Options struct {
	Engine *game.Engine
	// Hub serves /ws. When nil a hub is created and subscribed to Engine.
	Hub *Hub
	// Checks run on /readyz in order; the first failure is reported.
	Checks      []Check
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins []string
}

// NewRouter returns the HTTP handler with all routes. ctx bounds the rate
// limiter cleanup goroutine.
func NewRouter(ctx context.Context, opts Options) http.Handler {
	if !opts.Auth.enabled() {
		slog.Warn("Admin authentication not configured - admin endpoints are UNPROTECTED. Set ADMIN_USERNAME+ADMIN_PASSWORD or ADMIN_TOKEN for production")
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(opts.Engine)
		opts.Engine.Subscribe(hub)
	}
	limiter := newIPRateLimiter(ctx, opts.RateLimit)
	h := NewHandlers(opts.Engine, opts.Checks)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))
	r.Use(correlate)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Get("/game", h.HandleGame)
	r.Get("/leaderboard", h.HandleLeaderboard)
	r.Get("/podium", h.HandlePodium)
	r.Get("/ws", hub.HandleRequest)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return adminAuth(next, opts.Auth) })
		r.Use(func(next http.Handler) http.Handler { return rateLimitMiddleware(next, limiter) })

		r.Post("/game/next", h.HandleNextTrack)
		r.Post("/game/reveal", h.HandleReveal)
		r.Post("/game/cancel-last", h.HandleCancelLast)
		r.Post("/game/reset", h.HandleReset)
		r.Post("/game/backup", h.HandleBackup)
		r.Post("/podium/loser", h.HandlePickLoser)
		r.Post("/players/{id}/adjust", h.HandleAdjust)
		r.Get("/tracks", h.HandleTracks)
		r.Put("/tracks/{index}", h.HandleTrackVisibility)
		r.Post("/tracks/{index}/misc", h.HandleTrackMisc)
		r.Post("/playlist", h.HandlePlaylist)
		r.Get("/settings", h.HandleSettings)
		r.Put("/settings", h.HandleUpdateSettings)
		r.Post("/chat", h.HandleChat)
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Token", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowedOrigins = origins
	opts.AllowCredentials = true
	return opts
}

// correlate reuses or generates X-Correlation-ID, stores it in the request
// context and wraps the request in a span.
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, r.Method+" "+r.URL.Path,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.statusCode))
		if rec.statusCode >= 500 {
			telemetry.RecordError(span, fmt.Errorf("HTTP %d", rec.statusCode))
		}
	})
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// WithoutCancel keeps context values but lets shutdown complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
