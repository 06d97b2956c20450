package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/blindtest/telemetry"
)

// MessageHandler receives channel messages. The game engine implements it.
type MessageHandler interface {
	OnChatMessage(nick, userID, text string)
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(nick, userID, text string)

func (f HandlerFunc) OnChatMessage(nick, userID, text string) { f(nick, userID, text) }

// Config selects the channel and the bot account.
type Config struct {
	Channel  string
	Username string
	// OAuthToken may be given with or without the "oauth:" prefix.
	OAuthToken string
}

// Client is a Twitch IRC connection bound to one channel.
type Client struct {
	cfg     Config
	irc     *twitch.Client
	handler MessageHandler
	logger  *slog.Logger

	connected atomic.Bool
}

// NewClient prepares a connection. Nothing is dialed until Run.
func NewClient(cfg Config, handler MessageHandler) *Client {
	cfg.Channel = strings.ToLower(strings.TrimPrefix(cfg.Channel, "#"))
	var irc *twitch.Client
	if cfg.Username == "" || cfg.OAuthToken == "" {
		irc = twitch.NewAnonymousClient()
	} else {
		tok := cfg.OAuthToken
		if !strings.HasPrefix(tok, "oauth:") {
			tok = "oauth:" + tok
		}
		irc = twitch.NewClient(cfg.Username, tok)
	}
	c := &Client{
		cfg:     cfg,
		irc:     irc,
		handler: handler,
		logger:  slog.Default().With(slog.String("component", "chat"), slog.String("channel", cfg.Channel)),
	}
	irc.OnConnect(func() {
		c.connected.Store(true)
		telemetry.SetChatConnected(true)
		c.logger.Info("chat connected")
	})
	irc.OnPrivateMessage(c.handlePrivateMessage)
	return c
}

// Connected reports whether the IRC session is up.
func (c *Client) Connected() bool { return c.connected.Load() }

// ReadOnly reports whether the client connected without credentials.
func (c *Client) ReadOnly() bool {
	return c.cfg.Username == "" || c.cfg.OAuthToken == ""
}

func (c *Client) handlePrivateMessage(msg twitch.PrivateMessage) {
	if !strings.EqualFold(msg.Channel, c.cfg.Channel) {
		return
	}
	nick := msg.User.DisplayName
	if nick == "" {
		nick = msg.User.Name
	}
	c.handler.OnChatMessage(nick, msg.User.ID, msg.Message)
}

// Run joins the channel and blocks until ctx is done. The IRC library
// reconnects on its own.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.Channel == "" {
		return errors.New("chat: channel is empty")
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.irc.Disconnect()
		case <-done:
		}
	}()
	defer close(done)

	c.irc.Join(c.cfg.Channel)
	err := c.irc.Connect()
	c.connected.Store(false)
	telemetry.SetChatConnected(false)
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		return nil
	}
	return err
}

// Say posts to the joined channel. The IRC client queues the line.
func (c *Client) Say(text string) {
	c.irc.Say(c.cfg.Channel, text)
}
