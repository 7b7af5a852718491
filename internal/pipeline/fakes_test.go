package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/logger"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeCRM struct {
	deals     []Deal
	contacts  map[string]*Contact
	emails    map[string][]EmailSummary
	owners    map[string]string
	listErr   error
	emailErr  map[string]error
	ownerErrs bool
}

func (f *fakeCRM) ListOpenDeals(context.Context) ([]Deal, error) {
	return f.deals, f.listErr
}

func (f *fakeCRM) GetContact(_ context.Context, dealID string) (*Contact, error) {
	return f.contacts[dealID], nil
}

func (f *fakeCRM) GetRecentEmails(_ context.Context, dealID string, limit int) ([]EmailSummary, error) {
	if err := f.emailErr[dealID]; err != nil {
		return nil, err
	}
	emails := f.emails[dealID]
	if len(emails) > limit {
		emails = emails[:limit]
	}
	return emails, nil
}

func (f *fakeCRM) GetOwnerEmail(_ context.Context, ownerID string) (string, error) {
	if f.ownerErrs {
		return "", errors.New("missing scope")
	}
	email, ok := f.owners[ownerID]
	if !ok {
		return "", fmt.Errorf("owner %s not found", ownerID)
	}
	return email, nil
}

type fakeScorer struct {
	scores  map[string]followup.Urgency
	fail    map[string]bool
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeScorer) ScoreUrgency(ctx context.Context, deal DealContext) (UrgencyResult, error) {
	if f.block != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return UrgencyResult{}, ctx.Err()
		}
	}
	if f.fail[deal.DealID] {
		return UrgencyResult{}, errors.New("model unavailable")
	}
	score, ok := f.scores[deal.DealID]
	if !ok {
		score = followup.UrgencyMedium
	}
	return UrgencyResult{Score: score, Reason: "quiet for " + fmt.Sprint(deal.DaysSinceLastActivity) + " days"}, nil
}

type fakeDrafter struct {
	fail map[string]bool
}

func (f *fakeDrafter) DraftEmail(_ context.Context, deal DealContext, u UrgencyResult) (EmailDraft, error) {
	if f.fail[deal.DealID] {
		return EmailDraft{}, errors.New("model unavailable")
	}
	return EmailDraft{Subject: "Following up on " + deal.DealName, Body: "Hi " + deal.ContactName + ", (" + string(u.Score) + ")"}, nil
}

type fakeCards struct {
	mu     sync.Mutex
	posted []followup.Record
	fail   map[string]bool
}

func (f *fakeCards) PostCard(_ context.Context, record followup.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[record.DealID] {
		return "", errors.New("channel_not_found")
	}
	f.posted = append(f.posted, record)
	return fmt.Sprintf("C1:%d", len(f.posted)), nil
}

func daysAgo(n int) *time.Time {
	t := testNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func staleDeal(id, stage string, daysQuiet int) Deal {
	return Deal{ID: id, Name: "Deal " + id, Stage: stage, OwnerID: "owner-1", LastModified: daysAgo(daysQuiet)}
}

type fixture struct {
	crm     *fakeCRM
	scorer  *fakeScorer
	drafter *fakeDrafter
	cards   *fakeCards
	store   store.Store
	orch    *Orchestrator
}

func newFixture(t *testing.T, policy FailurePolicy, deals ...Deal) *fixture {
	t.Helper()

	s, err := store.OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	f := &fixture{
		crm: &fakeCRM{
			deals:    deals,
			contacts: map[string]*Contact{},
			emails:   map[string][]EmailSummary{},
			owners:   map[string]string{"owner-1": "rep@example.test"},
			emailErr: map[string]error{},
		},
		scorer:  &fakeScorer{scores: map[string]followup.Urgency{}, fail: map[string]bool{}},
		drafter: &fakeDrafter{fail: map[string]bool{}},
		cards:   &fakeCards{fail: map[string]bool{}},
		store:   s,
	}
	for _, d := range deals {
		f.crm.contacts[d.ID] = &Contact{FirstName: "Pat", LastName: d.ID, Email: d.ID + "@customer.test", Phone: "(650) 253-0000"}
	}

	thresholds := config.Thresholds{Default: 5, Stages: map[string]int{"negotiation": 3}}
	f.orch = NewOrchestrator(Deps{
		CRM:        f.crm,
		Scorer:     f.scorer,
		Drafter:    f.drafter,
		Cards:      f.cards,
		Store:      s,
		Thresholds: thresholds,
		Log:        logger.New("development"),
	}, Options{Concurrency: 3, Policy: policy, PhoneRegion: "US"})
	f.orch.detect.now = func() time.Time { return testNow }
	return f
}
