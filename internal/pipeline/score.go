package pipeline

import (
	"context"
	"fmt"
	"sort"

	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
)

// ScoreStage classifies every candidate and orders the result by severity.
type ScoreStage struct {
	scorer      Scorer
	concurrency int
	policy      FailurePolicy
	log         *logger.Logger
}

// Score returns one ScoredDeal per input, critical first. Deals of equal
// urgency keep their detection order.
func (s *ScoreStage) Score(ctx context.Context, deals []DealContext) ([]ScoredDeal, int, error) {
	scored, skipped, err := fanOut(ctx, deals, s.concurrency, s.policy,
		func(ctx context.Context, deal DealContext) (ScoredDeal, error) {
			result, err := s.scorer.ScoreUrgency(ctx, deal)
			if err != nil {
				return ScoredDeal{}, apperr.Upstream("failed to score deal", err).WithOp("deal " + deal.DealID)
			}
			if !result.Score.Valid() {
				return ScoredDeal{}, apperr.Upstream("failed to score deal",
					fmt.Errorf("unknown urgency %q", result.Score)).WithOp("deal " + deal.DealID)
			}
			return ScoredDeal{Deal: deal, Urgency: result}, nil
		},
		func(deal DealContext, err error) {
			s.log.WithContext(ctx).Warn("skipping deal after scoring failure", "dealId", deal.DealID, "error", err)
		},
	)
	if err != nil {
		return nil, skipped, err
	}

	SortByUrgency(scored)
	return scored, skipped, nil
}

// SortByUrgency orders deals critical, high, medium, low and is stable.
func SortByUrgency(deals []ScoredDeal) {
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Urgency.Score.Rank() < deals[j].Urgency.Score.Rank()
	})
}
