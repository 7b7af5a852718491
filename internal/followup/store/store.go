// Package store persists follow-up records.
//
// Every implementation enforces the same guarantees: at most one pending
// record per deal (checked atomically on Create), lifecycle rules applied
// through followup.Record.Apply on Update, read-modify-write that is atomic
// per record, and results that are durable before the call returns.
package store

import (
	"context"

	"deal_followup_backend/internal/followup"
)

// Store is the Record Store contract.
type Store interface {
	// GetAll returns every record in insertion order.
	GetAll(ctx context.Context) ([]followup.Record, error)
	// GetByID returns followup.ErrNotFound when id is unknown.
	GetByID(ctx context.Context, id string) (followup.Record, error)
	// GetPendingByDeal returns followup.ErrNotFound when the deal has no pending record.
	GetPendingByDeal(ctx context.Context, dealID string) (followup.Record, error)
	// Create returns followup.ErrDuplicatePending if the deal already has a pending record.
	Create(ctx context.Context, record followup.Record) error
	// Update merges patch into the record with the given id and returns the result.
	Update(ctx context.Context, id string, patch followup.Patch) (followup.Record, error)
	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
