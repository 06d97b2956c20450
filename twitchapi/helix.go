// Package twitchapi contains the Twitch Helix calls the game needs: user
// lookups for avatars and whispers for private !score answers.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	defaultBaseURL = "https://api.twitch.tv/helix"
	// MaxUsersPerRequest is the Helix limit of ids per /users call.
	MaxUsersPerRequest = 100
)

// AppTokens provides app access tokens.
type AppTokens interface {
	Get(ctx context.Context) (string, error)
}

// HelixClient calls the Twitch Helix API.
type HelixClient struct {
	AppTokenSource AppTokens
	ClientID       string
	// UserToken is the bot's user access token, needed for whispers.
	UserToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// User is the part of a Helix user the game shows.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) endpoint(path string, q url.Values) string {
	base := hc.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if len(q) == 0 {
		return base + path
	}
	return base + path + "?" + q.Encode()
}

func (hc *HelixClient) do(req *http.Request, token string, out any) error {
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("helix %s %s: %s: %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (hc *HelixClient) getUsers(ctx context.Context, q url.Values) ([]User, error) {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.endpoint("/users", q), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.do(req, tok, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	users, err := hc.getUsers(ctx, url.Values{"login": {login}})
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return users[0].ID, nil
}

// GetUsers looks up users by id, at most MaxUsersPerRequest at a time.
// Unknown ids are missing from the result.
func (hc *HelixClient) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxUsersPerRequest {
		return nil, fmt.Errorf("%d ids requested, limit is %d", len(ids), MaxUsersPerRequest)
	}
	return hc.getUsers(ctx, url.Values{"id": ids})
}

// SendWhisper sends a private message from the bot account.
func (hc *HelixClient) SendWhisper(ctx context.Context, fromUserID, toUserID, message string) error {
	if hc.UserToken == "" {
		return errors.New("whispers need a user token")
	}
	if fromUserID == "" || toUserID == "" {
		return errors.New("whisper sender and recipient are required")
	}
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	q := url.Values{"from_user_id": {fromUserID}, "to_user_id": {toUserID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.endpoint("/whispers", q), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return hc.do(req, hc.UserToken, nil)
}
