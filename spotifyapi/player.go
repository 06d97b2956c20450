// Package spotifyapi starts tracks on the streamer's Spotify player.
package spotifyapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Player plays tracks on one Spotify Connect device.
type Player struct {
	client   *spotify.Client
	deviceID *spotify.ID
}

// Option customizes a Player.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the client at another API root, for tests.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithHTTPClient sets the transport used under the OAuth2 client.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// NewPlayer returns a Player authenticated with a user access token holding
// the user-modify-playback-state scope. An empty deviceID targets the
// active device.
func NewPlayer(accessToken, deviceID string, opts ...Option) *Player {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	ctx := context.Background()
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	var clientOpts []spotify.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(o.baseURL))
	}
	p := &Player{client: spotify.New(httpClient, clientOpts...)}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		p.deviceID = &id
	}
	return p
}

// Play starts uri and loops it until the next track.
func (p *Player) Play(ctx context.Context, uri string) error {
	opt := &spotify.PlayOptions{DeviceID: p.deviceID, URIs: []spotify.URI{spotify.URI(uri)}}
	if err := p.client.PlayOpt(ctx, opt); err != nil {
		return fmt.Errorf("spotify play %s: %w", uri, err)
	}
	if err := p.client.RepeatOpt(ctx, "track", &spotify.PlayOptions{DeviceID: p.deviceID}); err != nil {
		// The track is already playing; a missing repeat only matters once
		// it ends.
		slog.Warn("spotify repeat failed", slog.String("component", "playback"), slog.Any("err", err))
	}
	return nil
}

// LogPlayer is used when no music player is configured: the operator
// starts tracks by hand.
type LogPlayer struct{}

// Play logs uri.
func (LogPlayer) Play(_ context.Context, uri string) error {
	slog.Info("next track", slog.String("component", "playback"), slog.String("uri", uri))
	return nil
}
