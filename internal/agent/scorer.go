package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/adk/model"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/pipeline"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/validator"
)

const scoringInstruction = `You are a sales urgency scoring agent. Analyze the deal context and return a JSON object with:
- "score": one of "critical", "high", "medium", "low"
- "reason": a brief explanation (1-2 sentences) of why this urgency level was assigned

Scoring guidelines:
- critical: Deal amount > $50k AND stale > 5 days, OR close date is past/within 3 days
- high: Deal in negotiation/contract sent AND stale > threshold, OR amount > $20k stale > 3 days
- medium: Deal stale past threshold but earlier stage or lower amount
- low: Barely past threshold, early stage, no close date pressure`

type scoringPrompt struct {
	DealName              string   `json:"dealName"`
	Stage                 string   `json:"stage"`
	Amount                *float64 `json:"amount"`
	CloseDate             string   `json:"closeDate"`
	DaysSinceLastActivity int      `json:"daysSinceLastActivity"`
	ContactName           string   `json:"contactName"`
	CompanyName           string   `json:"companyName"`
	RecentEmailCount      int      `json:"recentEmailCount"`
}

type scoringReply struct {
	Score  string `json:"score" validate:"required,oneof=critical high medium low"`
	Reason string `json:"reason" validate:"required"`
}

// Scorer classifies deal urgency with an LLM.
type Scorer struct {
	runner *jsonRunner
	val    *validator.Validator
}

// NewScorer creates the urgency scoring agent.
func NewScorer(llm model.LLM, val *validator.Validator) (*Scorer, error) {
	r, err := newJSONRunner("UrgencyScorer", "urgency-scorer",
		"Classifies how urgently a stale deal needs a follow-up.", scoringInstruction, llm)
	if err != nil {
		return nil, err
	}
	return &Scorer{runner: r, val: val}, nil
}

// ScoreUrgency implements pipeline.Scorer.
func (s *Scorer) ScoreUrgency(ctx context.Context, deal pipeline.DealContext) (pipeline.UrgencyResult, error) {
	prompt, err := json.Marshal(scoringPrompt{
		DealName:              deal.DealName,
		Stage:                 deal.DealStage,
		Amount:                deal.Amount,
		CloseDate:             deal.CloseDate,
		DaysSinceLastActivity: deal.DaysSinceLastActivity,
		ContactName:           deal.ContactName,
		CompanyName:           deal.CompanyName,
		RecentEmailCount:      len(deal.RecentEmails),
	})
	if err != nil {
		return pipeline.UrgencyResult{}, fmt.Errorf("encode scoring prompt: %w", err)
	}

	raw, err := s.runner.run(ctx, "score-"+deal.DealID, string(prompt))
	if err != nil {
		return pipeline.UrgencyResult{}, apperr.Upstream("urgency scoring failed", err)
	}
	return parseScoringReply(raw, s.val)
}

func parseScoringReply(raw string, val *validator.Validator) (pipeline.UrgencyResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return pipeline.UrgencyResult{}, apperr.Upstream("urgency scoring returned no result", err)
	}

	var reply scoringReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return pipeline.UrgencyResult{}, apperr.Upstream("urgency scoring returned invalid JSON", err)
	}
	reply.Score = strings.ToLower(strings.TrimSpace(reply.Score))
	reply.Reason = strings.TrimSpace(reply.Reason)
	if err := val.Struct(reply); err != nil {
		return pipeline.UrgencyResult{}, apperr.Upstream("urgency scoring returned an invalid result",
			fmt.Errorf("%s", validator.Describe(err)))
	}

	return pipeline.UrgencyResult{Score: followup.Urgency(reply.Score), Reason: reply.Reason}, nil
}

var _ pipeline.Scorer = (*Scorer)(nil)
