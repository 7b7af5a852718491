// Package slack is the chat collaborator: it posts approval cards to a
// channel and rewrites them once a reviewer has decided.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/logger"

	slackapi "github.com/slack-go/slack"
)

const defaultBaseURL = "https://slack.com/api/"

// Config holds the client settings.
type Config struct {
	BotToken  string
	ChannelID string
	BaseURL   string
	Timeout   time.Duration
}

// Client posts and updates approval cards through the Slack Web API.
type Client struct {
	api     *slackapi.Client
	channel string
	log     *logger.Logger
}

// New creates a Slack client.
func New(cfg Config, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// slack-go appends the method name directly to the API URL.
	baseURL = strings.TrimRight(baseURL, "/") + "/"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		api: slackapi.New(cfg.BotToken,
			slackapi.OptionAPIURL(baseURL),
			slackapi.OptionHTTPClient(&http.Client{Timeout: timeout}),
		),
		channel: cfg.ChannelID,
		log:     log,
	}
}

// APIError is an ok=false response.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// PostCard posts the approval card for record and returns its message
// reference ("<channel>:<ts>").
func (c *Client) PostCard(ctx context.Context, record followup.Record) (string, error) {
	channel, ts, err := c.api.PostMessageContext(ctx, c.channel,
		slackapi.MsgOptionText(CardFallbackText(record), false),
		slackapi.MsgOptionBlocks(ApprovalCard(record)...),
	)
	if err != nil {
		return "", c.wrap("chat.postMessage", err)
	}

	if channel == "" {
		channel = c.channel
	}
	return FormatMessageRef(channel, ts), nil
}

// UpdateCard replaces the card at messageRef with the outcome.
func (c *Client) UpdateCard(ctx context.Context, messageRef string, outcome followup.Status, dealName string) error {
	channel, ts := ParseMessageRef(messageRef)
	if channel == "" {
		channel = c.channel
	}
	if ts == "" {
		return errors.New("slack: empty message reference")
	}

	_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts,
		slackapi.MsgOptionText(OutcomeText(outcome, dealName), false),
		slackapi.MsgOptionBlocks(OutcomeCard(outcome, dealName)...),
	)
	if err != nil {
		return c.wrap("chat.update", err)
	}
	return nil
}

// wrap maps an ok=false response to APIError and labels transport errors.
func (c *Client) wrap(method string, err error) error {
	var apiErr slackapi.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, Code: apiErr.Err}
	}
	c.log.Warn("slack request failed", "method", method, "error", err)
	return fmt.Errorf("slack %s: %w", method, err)
}

// FormatMessageRef joins a channel id and message ts.
func FormatMessageRef(channel, ts string) string {
	if channel == "" {
		return ts
	}
	return channel + ":" + ts
}

// ParseMessageRef splits a reference made by FormatMessageRef. A bare ts has
// no channel.
func ParseMessageRef(ref string) (channel, ts string) {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}
