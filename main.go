// Command blindtest runs a live music blind test for a Twitch channel.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the state store (bbolt, Postgres or memory) and restores the
//     saved game, or loads PLAYLIST_PATH on a fresh start.
//   - Connects to Twitch chat and feeds every channel message to the game.
//   - Fetches player avatars from Helix and plays tracks through Spotify
//     when credentials are configured.
//   - Exposes the HTTP API, the websocket event feed and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM; the game is saved one last time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/blindtest/chat"
	"github.com/onnwee/blindtest/config"
	"github.com/onnwee/blindtest/db"
	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/normalize"
	"github.com/onnwee/blindtest/server"
	"github.com/onnwee/blindtest/session"
	"github.com/onnwee/blindtest/spotifyapi"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
	"github.com/onnwee/blindtest/twitchapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("blindtest", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("blindtest exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shut down cleanly")
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run(ctx context.Context, cfg *config.Config) error {
	store, checks, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	saver := session.NewSaver(store)
	saver.OnError = func(err error) {
		slog.Error("game state not saved", slog.Any("err", err), slog.String("component", "store"))
	}

	// Helix: app token for avatars, bot user token for whispers.
	var helix *twitchapi.HelixClient
	var whisperer chat.Whisperer
	if cfg.HelixEnabled() {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
			UserToken:      cfg.TwitchUserToken,
		}
		if cfg.TwitchUserToken != "" && cfg.TwitchBotUserID != "" {
			whisperer = helix
		}
	} else {
		slog.Info("helix disabled (missing TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET): no avatars, no whispers")
	}

	var engine *game.Engine
	var chatClient *chat.Client
	var messenger *chat.Messenger
	var out game.Messenger
	if err := cfg.ValidateChatReady(); err == nil {
		chatClient = chat.NewClient(chat.Config{
			Channel:    cfg.TwitchChannel,
			Username:   cfg.TwitchBotUsername,
			OAuthToken: cfg.TwitchOAuthToken,
		}, chat.HandlerFunc(func(nick, userID, text string) {
			engine.OnChatMessage(nick, userID, text)
		}))
		messenger = chat.NewMessenger(chatClient, whisperer, cfg.TwitchBotUserID)
		out = messenger
		checks = append(checks, server.Check{Name: "chat", Fn: func(context.Context) error {
			if !chatClient.Connected() {
				return errors.New("chat not connected")
			}
			return nil
		}})
		if chatClient.ReadOnly() {
			slog.Info("chat is read-only (missing TWITCH_BOT_USERNAME/TWITCH_OAUTH_TOKEN)")
		}
	} else {
		slog.Info("chat disabled", slog.Any("reason", err))
	}

	var playback game.Playback = spotifyapi.LogPlayer{}
	if cfg.SpotifyToken != "" {
		playback = spotifyapi.NewPlayer(cfg.SpotifyToken, cfg.SpotifyDeviceID)
	}

	var norm *normalize.Normalizer
	if cfg.AlternativesPath != "" {
		alts, err := normalize.LoadAlternatives(afero.NewOsFs(), cfg.AlternativesPath)
		if err != nil {
			return err
		}
		norm = normalize.New(alts)
		slog.Info("alternative forms loaded", slog.String("path", cfg.AlternativesPath), slog.Int("entries", len(alts)))
	}

	engine, err = game.New(game.Options{
		Settings:   cfg.Game,
		Normalizer: norm,
		Messenger:  out,
		Playback:   playback,
		Persister:  saver,
	})
	if err != nil {
		return fmt.Errorf("game: %w", err)
	}
	defer engine.Close()

	if err := restoreOrLoad(ctx, engine, store, cfg.PlaylistPath); err != nil {
		return err
	}

	if helix != nil {
		fetcher := twitchapi.NewAvatarFetcher(engine, helix, nil)
		engine.Subscribe(fetcher)
		defer fetcher.Close()
	}

	hub := server.NewHub(engine)
	engine.Subscribe(hub)
	defer func() { _ = hub.Close() }()

	router := server.NewRouter(ctx, server.Options{
		Engine: engine,
		Hub:    hub,
		Checks: checks,
		Auth: server.AuthConfig{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Token:    cfg.AdminToken,
		},
		RateLimit:   server.DefaultRateLimit(),
		CORSOrigins: cfg.CORSOrigins,
	})

	startPprof()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		saver.Run(gctx)
		return nil
	})
	g.Go(func() error { return server.Start(gctx, cfg.HTTPAddr, router) })
	if chatClient != nil {
		g.Go(func() error { return chatClient.Run(gctx) })
	}
	err = g.Wait()

	// pay open windows and save synchronously; Run may have exited before
	// the last changes
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := engine.Shutdown(saveCtx); serr != nil {
		slog.Error("final backup failed", slog.Any("err", serr), slog.String("component", "store"))
	}
	if messenger != nil {
		messenger.Wait()
	}
	return err
}

// openStore selects the state backend and returns the readiness checks that
// go with it.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, []server.Check, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open db: %w", err)
		}
		// versioned migrations first; the embedded schema covers
		// deployments started without the migrations directory
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, falling back to embedded schema",
				slog.Any("err", err), slog.String("component", "db_migrate"))
			if err := db.Migrate(ctx, database); err != nil {
				_ = database.Close()
				return nil, nil, nil, fmt.Errorf("migrate db: %w", err)
			}
		}
		store := db.NewPostgresStore(database)
		closeFn := func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}
		return store, []server.Check{{Name: "database", Fn: store.Ping}}, closeFn, nil
	case config.StoreMemory:
		slog.Warn("memory store selected: the game is lost on restart")
		return &session.MemoryStore{}, nil, func() {}, nil
	default:
		bs, err := db.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		closeFn := func() {
			if err := bs.Close(); err != nil {
				slog.Error("failed to close bolt store", slog.Any("err", err))
			}
		}
		check := server.Check{Name: "store", Fn: func(ctx context.Context) error {
			if _, err := bs.Load(ctx); err != nil && !errors.Is(err, session.ErrNoState) {
				return err
			}
			return nil
		}}
		return bs, []server.Check{check}, closeFn, nil
	}
}

// restoreOrLoad resumes the saved game, or starts from the playlist file
// when nothing was saved yet.
func restoreOrLoad(ctx context.Context, engine *game.Engine, store session.Store, playlistPath string) error {
	data, err := store.Load(ctx)
	switch {
	case err == nil:
		if err := engine.Restore(data); err != nil {
			return fmt.Errorf("restore saved game: %w", err)
		}
		slog.Info("saved game restored", slog.Int("players", engine.Ledger().Len()))
		return nil
	case !errors.Is(err, session.ErrNoState):
		return fmt.Errorf("load saved game: %w", err)
	}
	if playlistPath == "" {
		slog.Info("no saved game and no PLAYLIST_PATH; waiting for a playlist upload")
		return nil
	}
	p, err := track.LoadPlaylist(afero.NewOsFs(), playlistPath)
	if err != nil {
		return err
	}
	if err := engine.LoadPlaylist(p.Tracks); err != nil {
		return err
	}
	slog.Info("playlist loaded", slog.String("path", playlistPath), slog.String("name", p.Name))
	return nil
}

// startPprof enables profiling endpoints in debug mode (ENABLE_PPROF=1).
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
		srv := &http.Server{
			Addr:              pprofAddr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
