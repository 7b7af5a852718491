package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
	"deal_followup_backend/platform/phone"
	"deal_followup_backend/platform/validator"
)

const unnamedDeal = "Unnamed Deal"

// DetectStage finds open deals that are stale and have no pending follow-up.
type DetectStage struct {
	crm        CRM
	store      store.Store
	thresholds Thresholds
	val        *validator.Validator
	policy     FailurePolicy
	region     string
	now        func() time.Time
	log        *logger.Logger
}

// Detect returns one DealContext per stale deal in CRM order, plus the number
// of deals dropped under FailureSkip.
func (s *DetectStage) Detect(ctx context.Context) ([]DealContext, int, error) {
	deals, err := s.crm.ListOpenDeals(ctx)
	if err != nil {
		return nil, 0, apperr.Upstream("failed to list open deals", err)
	}

	now := s.now()
	out := make([]DealContext, 0, len(deals))
	skipped := 0

	for _, deal := range deals {
		dc, ok, err := s.inspect(ctx, deal, now)
		if err != nil {
			if s.policy == FailureSkip {
				s.log.WithContext(ctx).Warn("skipping deal after detection failure", "dealId", deal.ID, "error", err)
				skipped++
				continue
			}
			return nil, skipped, err
		}
		if ok {
			out = append(out, dc)
		}
	}
	return out, skipped, nil
}

// inspect builds the context for one deal. ok is false when the deal is not a
// candidate: already pending, not stale yet, or nobody to email.
func (s *DetectStage) inspect(ctx context.Context, deal Deal, now time.Time) (DealContext, bool, error) {
	_, err := s.store.GetPendingByDeal(ctx, deal.ID)
	switch {
	case err == nil:
		return DealContext{}, false, nil
	case !errors.Is(err, followup.ErrNotFound):
		return DealContext{}, false, fmt.Errorf("check pending follow-up for deal %s: %w", deal.ID, err)
	}

	emails, err := s.crm.GetRecentEmails(ctx, deal.ID, MaxRecentEmails)
	if err != nil {
		return DealContext{}, false, apperr.Upstream("failed to read deal emails", err).WithOp("deal " + deal.ID)
	}

	days := DaysSince(LastActivity(emails, deal.LastModified), now)
	if days < s.thresholds.ThresholdFor(deal.Stage) {
		return DealContext{}, false, nil
	}

	contact, err := s.crm.GetContact(ctx, deal.ID)
	if err != nil {
		return DealContext{}, false, apperr.Upstream("failed to read deal contact", err).WithOp("deal " + deal.ID)
	}
	if contact == nil || strings.TrimSpace(contact.Email) == "" {
		s.log.WithContext(ctx).Debug("stale deal has no contact email", "dealId", deal.ID)
		return DealContext{}, false, nil
	}

	name := deal.Name
	if strings.TrimSpace(name) == "" {
		name = unnamedDeal
	}

	dc := DealContext{
		DealID:                deal.ID,
		DealName:              name,
		DealStage:             deal.Stage,
		Amount:                deal.Amount,
		CloseDate:             deal.CloseDate,
		OwnerEmail:            s.ownerEmail(ctx, deal),
		ContactName:           contact.FullName(),
		ContactEmail:          strings.TrimSpace(contact.Email),
		ContactPhone:          phone.NormalizeE164(contact.Phone, s.region),
		CompanyName:           contact.Company,
		DaysSinceLastActivity: days,
		RecentEmails:          emails,
		Notes:                 []string{},
	}
	if dc.RecentEmails == nil {
		dc.RecentEmails = []EmailSummary{}
	}

	if err := s.val.Struct(dc); err != nil {
		s.log.WithContext(ctx).Warn("ignoring malformed deal", "dealId", deal.ID, "error", validator.Describe(err))
		return DealContext{}, false, nil
	}
	return dc, true, nil
}

// ownerEmail never fails: a missing or unresolvable owner becomes the
// fallback address.
func (s *DetectStage) ownerEmail(ctx context.Context, deal Deal) string {
	if deal.OwnerID == "" {
		return FallbackOwnerEmail
	}
	email, err := s.crm.GetOwnerEmail(ctx, deal.OwnerID)
	if err != nil || strings.TrimSpace(email) == "" {
		s.log.WithContext(ctx).Warn("owner lookup failed, using fallback", "dealId", deal.ID, "ownerId", deal.OwnerID, "error", err)
		return FallbackOwnerEmail
	}
	return email
}

// LastActivity is the later of the newest email date and the CRM
// last-modified date. The zero time means no activity is known.
func LastActivity(emails []EmailSummary, lastModified *time.Time) time.Time {
	var latest time.Time
	for _, e := range emails {
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	if lastModified != nil && lastModified.After(latest) {
		latest = *lastModified
	}
	return latest
}

// DaysSince returns whole days between last and now, floored and clamped at
// zero. A zero last counts as zero days.
func DaysSince(last, now time.Time) int {
	if last.IsZero() || !now.After(last) {
		return 0
	}
	return int(now.Sub(last) / (24 * time.Hour))
}
