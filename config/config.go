// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., Twitch chat), use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/validation"
)

// Store backends.
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	// Game rules at startup; operators can change them at runtime.
	Game game.Settings

	// Twitch chat
	TwitchChannel     string
	TwitchBotUsername string
	TwitchOAuthToken  string

	// Twitch Helix (avatars, whispers)
	TwitchClientID     string
	TwitchClientSecret string
	TwitchUserToken    string
	TwitchBotUserID    string

	// Playback
	SpotifyToken    string
	SpotifyDeviceID string

	// Persistence
	StoreBackend string `validate:"oneof=bolt postgres memory"`
	BoltPath     string `validate:"required_if=StoreBackend bolt"`
	DBDsn        string `validate:"required_if=StoreBackend postgres"`

	// HTTP
	HTTPAddr      string `validate:"required"`
	AdminToken    string
	AdminUsername string
	AdminPassword string `validate:"required_with=AdminUsername"`
	CORSOrigins   []string

	// PlaylistPath is loaded at startup when no saved game exists.
	PlaylistPath string
	// AlternativesPath is an optional TOML alternative-form table.
	AlternativesPath string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// Load reads environment variables and applies defaults. It doesn't fail if Twitch creds are missing;
// use ValidateChatReady() when you require chat. Missing optional variables disable features
// (whispers, avatars, Spotify playback).
func Load() (*Config, error) {
	cfg := &Config{Game: game.DefaultSettings()}

	var err error
	g := &cfg.Game
	if g.AddEveryUser, err = envBool("ADD_EVERY_USER", g.AddEveryUser); err != nil {
		return nil, err
	}
	if g.ChatNotifications, err = envBool("CHAT_NOTIFICATIONS", g.ChatNotifications); err != nil {
		return nil, err
	}
	if g.PreviewGuessNumber, err = envBool("PREVIEW_GUESS_NUMBER", g.PreviewGuessNumber); err != nil {
		return nil, err
	}
	if g.Shuffle, err = envBool("SHUFFLE", g.Shuffle); err != nil {
		return nil, err
	}
	if v := os.Getenv("ACCEPTANCE_DELAY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ACCEPTANCE_DELAY (seconds): %w", err)
		}
		g.AcceptanceDelay = n
	}
	g.ScoreCommandMode = game.ScoreCommandMode(envOr("SCORE_COMMAND_MODE", string(g.ScoreCommandMode)))
	g.MatchAlgorithm = envOr("MATCH_ALGORITHM", g.MatchAlgorithm)

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchUserToken = os.Getenv("TWITCH_USER_TOKEN")
	cfg.TwitchBotUserID = os.Getenv("TWITCH_BOT_USER_ID")

	cfg.SpotifyToken = os.Getenv("SPOTIFY_TOKEN")
	cfg.SpotifyDeviceID = os.Getenv("SPOTIFY_DEVICE_ID")

	cfg.StoreBackend = envOr("STORE_BACKEND", StoreBolt)
	cfg.BoltPath = envOr("BOLT_PATH", "data/blindtest.db")
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	cfg.PlaylistPath = os.Getenv("PLAYLIST_PATH")
	cfg.AlternativesPath = os.Getenv("ALTERNATIVES_PATH")

	if err := cfg.Game.Validate(); err != nil {
		return nil, fmt.Errorf("game settings: %w", err)
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateChatReady checks required fields when chat is enabled.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL")
	}
	return nil
}

// CanSpeak reports whether the bot can post to chat.
func (c *Config) CanSpeak() bool {
	return c.TwitchBotUsername != "" && c.TwitchOAuthToken != ""
}

// HelixEnabled reports whether app credentials for Helix are set.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

// AdminConfigured reports whether admin endpoints are protected.
func (c *Config) AdminConfigured() bool {
	return c.AdminToken != "" || (c.AdminUsername != "" && c.AdminPassword != "")
}
