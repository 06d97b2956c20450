package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/blindtest/telemetry"
)

// ErrReadOnly is returned when the bot has no credentials to speak.
var ErrReadOnly = errors.New("chat: no credentials to send messages")

// Sayer posts channel messages.
type Sayer interface {
	Say(text string)
	ReadOnly() bool
}

// Whisperer sends private messages through Helix.
type Whisperer interface {
	SendWhisper(ctx context.Context, fromUserID, toUserID, message string) error
}

// Messenger is the engine's outgoing chat. Whispers are sent in the
// background so a slow Helix call never holds up chat handling.
type Messenger struct {
	irc       Sayer
	whisperer Whisperer
	botUserID string
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewMessenger builds a Messenger. whisperer may be nil, in which case
// whispers fail.
func NewMessenger(irc Sayer, whisperer Whisperer, botUserID string) *Messenger {
	return &Messenger{
		irc:       irc,
		whisperer: whisperer,
		botUserID: botUserID,
		logger:    slog.Default().With(slog.String("component", "chat")),
	}
}

// Say posts text to the channel.
func (m *Messenger) Say(_ context.Context, text string) error {
	if m.irc == nil || m.irc.ReadOnly() {
		return ErrReadOnly
	}
	m.irc.Say(text)
	return nil
}

// Whisper queues a private message to userID.
func (m *Messenger) Whisper(_ context.Context, userID, text string) error {
	if m.whisperer == nil || m.botUserID == "" {
		return ErrReadOnly
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.whisperer.SendWhisper(ctx, m.botUserID, userID, text); err != nil {
			telemetry.IncChatSendFailure()
			m.logger.Warn("whisper not sent", slog.String("user", userID), slog.Any("err", err))
		}
	}()
	return nil
}

// Wait blocks until queued whispers are sent.
func (m *Messenger) Wait() {
	m.wg.Wait()
}
