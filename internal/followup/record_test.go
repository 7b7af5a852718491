package followup

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func pendingRecord() Record {
	return Record{
		ID:           "rec-1",
		DealID:       "deal-1",
		DealName:     "Acme Renewal",
		ContactEmail: "jane@acme.test",
		UrgencyScore: UrgencyHigh,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestApplyAllowsPendingToTerminal(t *testing.T) {
	at := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	sent, err := pendingRecord().Apply(MarkSent(at))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if sent.Status != StatusSent || sent.SentAt == nil || !sent.SentAt.Equal(at) {
		t.Fatalf("unexpected sent record: %+v", sent)
	}

	dismissed, err := pendingRecord().Apply(MarkDismissed())
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if dismissed.Status != StatusDismissed || dismissed.SentAt != nil {
		t.Fatalf("unexpected dismissed record: %+v", dismissed)
	}
}

func TestApplyRejectsLeavingTerminalState(t *testing.T) {
	sent, err := pendingRecord().Apply(MarkSent(time.Now()))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	dismissed, err := pendingRecord().Apply(MarkDismissed())
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	pending := StatusPending
	cases := []struct {
		name  string
		from  Record
		patch Patch
	}{
		{"sent to dismissed", sent, MarkDismissed()},
		{"sent to sent", sent, MarkSent(time.Now())},
		{"dismissed to sent", dismissed, MarkSent(time.Now())},
		{"dismissed to pending", dismissed, Patch{Status: &pending}},
	}

	for _, tc := range cases {
		got, err := tc.from.Apply(tc.patch)
		if !errors.Is(err, ErrAlreadyProcessed) {
			t.Errorf("%s: expected ErrAlreadyProcessed, got %v", tc.name, err)
		}
		if got.Status != tc.from.Status {
			t.Errorf("%s: status changed to %s", tc.name, got.Status)
		}
	}
}

func TestApplyEnforcesSentAtOnlyWhenSent(t *testing.T) {
	sent := StatusSent
	at := time.Now()

	if _, err := pendingRecord().Apply(Patch{Status: &sent}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("sent without sentAt: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := pendingRecord().Apply(Patch{SentAt: &at}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("sentAt while pending: expected ErrInvalidTransition, got %v", err)
	}
	dismissed := StatusDismissed
	if _, err := pendingRecord().Apply(Patch{Status: &dismissed, SentAt: &at}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("sentAt on dismissal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyMessageRefOnly(t *testing.T) {
	ref := "1700000000.000100"
	got, err := pendingRecord().Apply(Patch{MessageRef: &ref})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MessageRef != ref || got.Status != StatusPending {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestValidateNew(t *testing.T) {
	if err := pendingRecord().ValidateNew(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	noEmail := pendingRecord()
	noEmail.ContactEmail = ""
	if err := noEmail.ValidateNew(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}

	sent := pendingRecord()
	sent.Status = StatusSent
	if err := sent.ValidateNew(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for non-pending record, got %v", err)
	}
}

func TestUrgencyRankAndParse(t *testing.T) {
	if !(UrgencyCritical.Rank() < UrgencyHigh.Rank() && UrgencyHigh.Rank() < UrgencyMedium.Rank() && UrgencyMedium.Rank() < UrgencyLow.Rank()) {
		t.Fatal("urgency ranks out of order")
	}
	if u, err := ParseUrgency(" HIGH "); err != nil || u != UrgencyHigh {
		t.Fatalf("ParseUrgency = %q, %v", u, err)
	}
	if _, err := ParseUrgency("urgent"); err == nil {
		t.Fatal("expected error for unknown urgency")
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if len(km.locks) != 0 {
		t.Fatalf("expected lock table to be empty, has %d entries", len(km.locks))
	}
}
