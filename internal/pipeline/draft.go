package pipeline

import (
	"context"
	"errors"
	"strings"

	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
)

// DraftStage writes one email per scored deal.
type DraftStage struct {
	drafter     Drafter
	concurrency int
	policy      FailurePolicy
	log         *logger.Logger
}

// Draft keeps the order it is given.
func (s *DraftStage) Draft(ctx context.Context, deals []ScoredDeal) ([]DraftedDeal, int, error) {
	return fanOut(ctx, deals, s.concurrency, s.policy,
		func(ctx context.Context, sd ScoredDeal) (DraftedDeal, error) {
			draft, err := s.drafter.DraftEmail(ctx, sd.Deal, sd.Urgency)
			if err != nil {
				return DraftedDeal{}, apperr.Upstream("failed to draft email", err).WithOp("deal " + sd.Deal.DealID)
			}
			if strings.TrimSpace(draft.Subject) == "" || strings.TrimSpace(draft.Body) == "" {
				return DraftedDeal{}, apperr.Upstream("failed to draft email",
					errors.New("empty subject or body")).WithOp("deal " + sd.Deal.DealID)
			}
			return DraftedDeal{Deal: sd.Deal, Urgency: sd.Urgency, Draft: draft}, nil
		},
		func(sd ScoredDeal, err error) {
			s.log.WithContext(ctx).Warn("skipping deal after drafting failure", "dealId", sd.Deal.DealID, "error", err)
		},
	)
}
