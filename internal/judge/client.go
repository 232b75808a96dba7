// Package judge wraps the external AI judging service. It is a single
// synchronous request/response with no retry; a timeout or error must never
// block the debate from reaching its results state.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rebutly/podium/internal/clients"
	"github.com/rebutly/podium/internal/models"
)

// HistoryTurn is one non-system utterance in conversation order.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is the judging request built from the aggregated transcript.
type Request struct {
	Type                string        `json:"type"`
	Topic               string        `json:"topic"`
	UserSide            string        `json:"userSide"`
	Phase               string        `json:"phase"`
	UserArguments       []string      `json:"userArguments"`
	OpponentArguments   []string      `json:"aiArguments"`
	ConversationHistory []HistoryTurn `json:"conversationHistory"`
}

// Evaluator is the judging boundary consumed by the debate controller.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*models.Feedback, error)
}

// Client calls the debate-ai function endpoint.
type Client struct {
	base *clients.BaseClient
}

// NewClient returns a judging client for the given functions base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	base := clients.NewBaseClient(baseURL)
	base.SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		base.SetTimeout(timeout)
	}
	return &Client{base: base}
}

// Evaluate requests feedback for a completed debate.
func (c *Client) Evaluate(ctx context.Context, req Request) (*models.Feedback, error) {
	req.Type = "generate_feedback"
	if req.Phase == "" {
		req.Phase = "closing"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal judging request: %w", err)
	}

	log.Info().
		Str("topic", req.Topic).
		Str("side", req.UserSide).
		Int("user_arguments", len(req.UserArguments)).
		Int("opponent_arguments", len(req.OpponentArguments)).
		Msg("requesting AI judgment")

	respBody, err := c.base.Post(ctx, "/debate-ai", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judging request failed: %w", err)
	}

	var feedback models.Feedback
	if err := json.Unmarshal(respBody, &feedback); err != nil {
		return nil, fmt.Errorf("unmarshal judging response: %w", err)
	}
	return &feedback, nil
}
