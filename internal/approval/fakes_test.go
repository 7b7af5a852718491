package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []followup.Record
	err   error
	delay time.Duration
}

func (f *fakeSender) SendFollowUp(_ context.Context, record followup.Record) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, record)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type cardUpdate struct {
	ref      string
	outcome  followup.Status
	dealName string
}

type fakeCards struct {
	mu      sync.Mutex
	updates []cardUpdate
	err     error
}

func (f *fakeCards) UpdateCard(_ context.Context, ref string, outcome followup.Status, dealName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, cardUpdate{ref: ref, outcome: outcome, dealName: dealName})
	return f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func seedPending(t *testing.T, s store.Store, id, dealID, messageRef string) followup.Record {
	t.Helper()
	record := followup.Record{
		ID:            id,
		DealID:        dealID,
		DealName:      "Acme Renewal",
		ContactName:   "Jane Doe",
		ContactEmail:  "jane@acme.test",
		OwnerEmail:    "rep@example.test",
		UrgencyScore:  followup.UrgencyHigh,
		UrgencyReason: "Close date is next week",
		DraftSubject:  "Next steps on the renewal",
		DraftBody:     "Hi Jane, ...",
		Status:        followup.StatusPending,
		MessageRef:    messageRef,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Create(context.Background(), record); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return record
}
