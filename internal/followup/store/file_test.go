package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deal_followup_backend/internal/followup"
)

func TestFileStoreContract(t *testing.T) {
	s, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	runStoreContract(t, s)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Create(ctx, newRecord("a", "deal-a")); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := s.Create(ctx, newRecord("b", "deal-b")); err != nil {
		t.Fatalf("create b: %v", err)
	}
	sentAt := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	if _, err := s.Update(ctx, "a", followup.MarkSent(sentAt)); err != nil {
		t.Fatalf("update: %v", err)
	}

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, err := reopened.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("unexpected records after reopen: %+v", all)
	}
	if all[0].Status != followup.StatusSent || all[0].SentAt == nil || !all[0].SentAt.Equal(sentAt) {
		t.Fatalf("sent state not persisted: %+v", all[0])
	}
	if _, err := reopened.GetPendingByDeal(ctx, "deal-b"); err != nil {
		t.Fatalf("pending index not rebuilt: %v", err)
	}
}

func TestFileStoreRejectsSnapshotWithTwoPendingForOneDeal(t *testing.T) {
	dir := t.TempDir()
	content := `[
  {"id":"x","dealId":"d","contactEmail":"a@b.c","urgencyScore":"low","status":"pending","createdAt":"2026-01-01T00:00:00Z"},
  {"id":"y","dealId":"d","contactEmail":"a@b.c","urgencyScore":"low","status":"pending","createdAt":"2026-01-01T00:00:00Z"}
]`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := OpenFileStore(dir); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestFileStoreReturnsCopies(t *testing.T) {
	s, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.Create(ctx, newRecord("a", "deal-a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, _ := s.GetAll(ctx)
	all[0].Status = followup.StatusSent

	got, err := s.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != followup.StatusPending {
		t.Fatal("caller mutation leaked into the store")
	}
}
