package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/adk/model"

	"deal_followup_backend/internal/pipeline"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/validator"
)

const draftingInstruction = `You are a professional sales email writer. Draft a follow-up email for a stale deal.
Return a JSON object with "subject" and "body" fields.

Guidelines:
- Be warm, professional, and concise (under 150 words for body)
- Reference the deal context naturally without being pushy
- For critical/high urgency: more direct, reference timeline or next steps
- For medium/low urgency: softer check-in, offer value or ask open question
- If there's email history, reference previous conversation naturally
- Address the contact by first name
- Sign off with just the rep's name (will be filled in by the rep)
- Do NOT include placeholder brackets like [Your Name], end with a simple sign-off`

const noEmailHistory = "No previous emails found."

type draftingPrompt struct {
	DealName              string   `json:"dealName"`
	Stage                 string   `json:"stage"`
	Amount                *float64 `json:"amount"`
	CloseDate             string   `json:"closeDate"`
	DaysSinceLastActivity int      `json:"daysSinceLastActivity"`
	ContactName           string   `json:"contactName"`
	CompanyName           string   `json:"companyName"`
	UrgencyScore          string   `json:"urgencyScore"`
	UrgencyReason         string   `json:"urgencyReason"`
	EmailHistory          string   `json:"emailHistory"`
}

type draftingReply struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// Drafter writes follow-up emails with an LLM.
type Drafter struct {
	runner *jsonRunner
	val    *validator.Validator
}

// NewDrafter creates the email drafting agent.
func NewDrafter(llm model.LLM, val *validator.Validator) (*Drafter, error) {
	r, err := newJSONRunner("FollowUpDrafter", "followup-drafter",
		"Drafts a short follow-up email for a stale deal.", draftingInstruction, llm)
	if err != nil {
		return nil, err
	}
	return &Drafter{runner: r, val: val}, nil
}

// DraftEmail implements pipeline.Drafter.
func (d *Drafter) DraftEmail(ctx context.Context, deal pipeline.DealContext, urgency pipeline.UrgencyResult) (pipeline.EmailDraft, error) {
	prompt, err := json.Marshal(draftingPrompt{
		DealName:              deal.DealName,
		Stage:                 deal.DealStage,
		Amount:                deal.Amount,
		CloseDate:             deal.CloseDate,
		DaysSinceLastActivity: deal.DaysSinceLastActivity,
		ContactName:           deal.ContactName,
		CompanyName:           deal.CompanyName,
		UrgencyScore:          string(urgency.Score),
		UrgencyReason:         urgency.Reason,
		EmailHistory:          formatEmailHistory(deal.RecentEmails),
	})
	if err != nil {
		return pipeline.EmailDraft{}, fmt.Errorf("encode drafting prompt: %w", err)
	}

	raw, err := d.runner.run(ctx, "draft-"+deal.DealID, string(prompt))
	if err != nil {
		return pipeline.EmailDraft{}, apperr.Upstream("email drafting failed", err)
	}
	return parseDraftingReply(raw, d.val)
}

func formatEmailHistory(emails []pipeline.EmailSummary) string {
	if len(emails) == 0 {
		return noEmailHistory
	}
	entries := make([]string, 0, len(emails))
	for _, e := range emails {
		entries = append(entries, fmt.Sprintf("From: %s\nTo: %s\nDate: %s\nSubject: %s\n%s",
			e.From, e.To, e.Date.UTC().Format(time.RFC3339), e.Subject, e.BodyPreview))
	}
	return strings.Join(entries, "\n---\n")
}

func parseDraftingReply(raw string, val *validator.Validator) (pipeline.EmailDraft, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return pipeline.EmailDraft{}, apperr.Upstream("email drafting returned no result", err)
	}

	var reply draftingReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return pipeline.EmailDraft{}, apperr.Upstream("email drafting returned invalid JSON", err)
	}
	reply.Subject = strings.TrimSpace(reply.Subject)
	reply.Body = strings.TrimSpace(reply.Body)
	if err := val.Struct(reply); err != nil {
		return pipeline.EmailDraft{}, apperr.Upstream("email drafting returned an invalid result",
			fmt.Errorf("%s", validator.Describe(err)))
	}
	return pipeline.EmailDraft{Subject: reply.Subject, Body: reply.Body}, nil
}

var _ pipeline.Drafter = (*Drafter)(nil)
