package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/httpkit"
)

const (
	triggerTokenTTL = 5 * time.Minute
	// A run waits on the CRM, the LLM and chat for every stale deal.
	triggerTimeout = 10 * time.Minute
)

// ErrRunInProgress is returned when the API is already running the pipeline.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// RunSummary is the API's reply to a successful run.
type RunSummary struct {
	Success          bool   `json:"success"`
	StaleDealsFound  int    `json:"staleDealsFound"`
	FollowUpsCreated int    `json:"followUpsCreated"`
	Error            string `json:"error,omitempty"`
}

// Trigger calls the API's pipeline run endpoint.
type Trigger struct {
	httpClient *http.Client
	url        string
	secret     string
	now        func() time.Time
}

func NewTrigger(cfg config.TriggerConfig) *Trigger {
	return &Trigger{
		httpClient: &http.Client{Timeout: triggerTimeout},
		url:        cfg.GetPipelineTriggerURL(),
		secret:     cfg.GetPipelineTriggerSecret(),
		now:        time.Now,
	}
}

// Run performs one GET and decodes the summary. A 409 maps to
// ErrRunInProgress; any other non-200 is an error.
func (t *Trigger) Run(ctx context.Context) (RunSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return RunSummary{}, fmt.Errorf("create trigger request: %w", err)
	}
	if t.secret != "" {
		token, err := httpkit.NewTriggerToken(t.secret, triggerTokenTTL, t.now())
		if err != nil {
			return RunSummary{}, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return RunSummary{}, fmt.Errorf("trigger pipeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return RunSummary{}, ErrRunInProgress
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RunSummary{}, fmt.Errorf("read trigger response: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return RunSummary{}, fmt.Errorf("decode trigger response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !summary.Success {
		return summary, fmt.Errorf("pipeline run failed (status %d): %s", resp.StatusCode, summary.Error)
	}
	return summary, nil
}
