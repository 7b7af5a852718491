// Package hubspot is the CRM collaborator: open deals, their contact, email
// history and owner, and the note that records an approved follow-up.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deal_followup_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.hubapi.com"
	maxErrorBody   = 4 << 10
)

// Config holds the client settings.
type Config struct {
	AccessToken       string
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the HubSpot CRM v3/v4 REST API. Every request waits on a
// shared limiter so a run stays under the private-app rate limit.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a HubSpot client.
func New(cfg Config, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Category string
	Message  string
}

func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("hubspot: status %d (%s): %s", e.Status, e.Category, e.Message)
	}
	return fmt.Sprintf("hubspot: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from HubSpot.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// do sends a JSON request and decodes the JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp, method, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Category string `json:"category"`
		Message  string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	if body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}

	apiErr := &APIError{Status: resp.StatusCode, Category: body.Category, Message: body.Message}
	if resp.StatusCode != http.StatusNotFound {
		c.log.Warn("hubspot request failed", "method", method, "path", path, "status", resp.StatusCode, "category", body.Category)
	}
	return apiErr
}
