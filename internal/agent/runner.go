// Package agent holds the LLM-backed scoring and drafting collaborators.
// Each wraps a tool-less ADK agent that answers with a single JSON object.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"deal_followup_backend/platform/ai/openai"
	"deal_followup_backend/platform/config"
)

// NewModel builds the chat model shared by the scorer and drafter. JSON mode
// is always on.
func NewModel(cfg config.OpenAIConfig) model.LLM {
	return openai.NewModel(openai.Config{
		APIKey:   cfg.GetOpenAIAPIKey(),
		BaseURL:  cfg.GetOpenAIBaseURL(),
		Model:    cfg.GetOpenAIModel(),
		JSONMode: true,
		Timeout:  cfg.GetCollaboratorTimeout(),
	})
}

// jsonRunner runs one prompt per session against a single llmagent. The
// agent has no tools, so concurrent runs share nothing but the session store.
type jsonRunner struct {
	runner         *runner.Runner
	sessionService session.Service
	appName        string
}

func newJSONRunner(name, appName, description, instruction string, llm model.LLM) (*jsonRunner, error) {
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        name,
		Model:       llm,
		Description: description,
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", name, err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", name, err)
	}

	return &jsonRunner{
		runner:         r,
		sessionService: sessionService,
		appName:        appName,
	}, nil
}

// run sends prompt in a fresh session and returns the concatenated reply.
func (j *jsonRunner) run(ctx context.Context, userID, prompt string) (string, error) {
	sessionID := uuid.New().String()
	_, err := j.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   j.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: create session: %w", j.appName, err)
	}
	defer func() {
		_ = j.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   j.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var out strings.Builder
	for event, err := range j.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", fmt.Errorf("%s: run failed: %w", j.appName, err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			out.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// extractJSONObject returns the outermost {...} in s. Models sometimes wrap
// the object in a code fence even in JSON mode.
func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}
