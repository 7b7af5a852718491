package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"deal_followup_backend/internal/followup"
)

func newRecord(id, dealID string) followup.Record {
	return followup.Record{
		ID:            id,
		DealID:        dealID,
		DealName:      "Deal " + dealID,
		ContactName:   "Jane Doe",
		ContactEmail:  "jane@example.test",
		OwnerEmail:    "owner@example.test",
		UrgencyScore:  followup.UrgencyMedium,
		UrgencyReason: "quiet for a while",
		DraftSubject:  "Checking in",
		DraftBody:     "Hi Jane",
		Status:        followup.StatusPending,
		CreatedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and read back in insertion order", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := s.Create(ctx, newRecord(fmt.Sprintf("order-%d", i), fmt.Sprintf("order-deal-%d", i))); err != nil {
				t.Fatalf("create %d: %v", i, err)
			}
		}
		all, err := s.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		var ids []string
		for _, r := range all {
			if len(r.ID) > 6 && r.ID[:6] == "order-" {
				ids = append(ids, r.ID)
			}
		}
		want := []string{"order-0", "order-1", "order-2"}
		if fmt.Sprint(ids) != fmt.Sprint(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	})

	t.Run("one pending record per deal", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("dup-1", "dup-deal")); err != nil {
			t.Fatalf("first create: %v", err)
		}
		err := s.Create(ctx, newRecord("dup-2", "dup-deal"))
		if !errors.Is(err, followup.ErrDuplicatePending) {
			t.Fatalf("expected ErrDuplicatePending, got %v", err)
		}

		got, err := s.GetPendingByDeal(ctx, "dup-deal")
		if err != nil || got.ID != "dup-1" {
			t.Fatalf("pending by deal = %+v, %v", got, err)
		}

		if _, err := s.Update(ctx, "dup-1", followup.MarkDismissed()); err != nil {
			t.Fatalf("dismiss: %v", err)
		}
		if _, err := s.GetPendingByDeal(ctx, "dup-deal"); !errors.Is(err, followup.ErrNotFound) {
			t.Fatalf("expected no pending record after dismissal, got %v", err)
		}
		if err := s.Create(ctx, newRecord("dup-3", "dup-deal")); err != nil {
			t.Fatalf("new pending record after dismissal should be allowed: %v", err)
		}
	})

	t.Run("update unknown id", func(t *testing.T) {
		_, err := s.Update(ctx, "missing", followup.MarkDismissed())
		if !errors.Is(err, followup.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, followup.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("terminal records do not change", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("term-1", "term-deal")); err != nil {
			t.Fatalf("create: %v", err)
		}
		sent, err := s.Update(ctx, "term-1", followup.MarkSent(time.Now()))
		if err != nil {
			t.Fatalf("mark sent: %v", err)
		}
		if sent.Status != followup.StatusSent || sent.SentAt == nil {
			t.Fatalf("unexpected sent record %+v", sent)
		}

		if _, err := s.Update(ctx, "term-1", followup.MarkDismissed()); !errors.Is(err, followup.ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
		}
		got, err := s.GetByID(ctx, "term-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != followup.StatusSent || got.SentAt == nil {
			t.Fatalf("record changed after rejected update: %+v", got)
		}
	})

	t.Run("message ref is stored", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("ref-1", "ref-deal")); err != nil {
			t.Fatalf("create: %v", err)
		}
		ref := "1700000000.000200"
		if _, err := s.Update(ctx, "ref-1", followup.Patch{MessageRef: &ref}); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err := s.GetByID(ctx, "ref-1")
		if err != nil || got.MessageRef != ref {
			t.Fatalf("get = %+v, %v", got, err)
		}
	})

	t.Run("concurrent transitions of one record", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("race-1", "race-deal")); err != nil {
			t.Fatalf("create: %v", err)
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				patch := followup.MarkDismissed()
				if i%2 == 0 {
					patch = followup.MarkSent(time.Now())
				}
				if _, err := s.Update(ctx, "race-1", patch); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				} else if !errors.Is(err, followup.ErrAlreadyProcessed) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if successes != 1 {
			t.Fatalf("expected exactly one successful transition, got %d", successes)
		}
	})

	t.Run("concurrent creates for one deal", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Create(ctx, newRecord(fmt.Sprintf("cc-%d", i), "cc-deal"))
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				} else if !errors.Is(err, followup.ErrDuplicatePending) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if created != 1 {
			t.Fatalf("expected exactly one pending record, got %d", created)
		}
	})
}
