package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rebutly/podium/internal/clients"
)

// TokenClient fetches per-room media session credentials from the token
// function endpoint. Dialer implementations use it before connecting.
type TokenClient struct {
	base *clients.BaseClient
}

type tokenRequest struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewTokenClient returns a token client for the given functions base URL.
func NewTokenClient(baseURL string, timeout time.Duration) *TokenClient {
	base := clients.NewBaseClient(baseURL)
	base.SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		base.SetTimeout(timeout)
	}
	return &TokenClient{base: base}
}

// FetchToken requests a media credential for identity in roomName.
func (c *TokenClient) FetchToken(ctx context.Context, roomName, identity string) (string, error) {
	body, err := json.Marshal(tokenRequest{RoomName: roomName, Identity: identity})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	respBody, err := c.base.Post(ctx, "/video-token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("fetch media token: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}

	log.Debug().Str("room", roomName).Msg("fetched media token")
	return resp.Token, nil
}
