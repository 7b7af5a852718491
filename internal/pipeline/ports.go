package pipeline

import (
	"context"

	"deal_followup_backend/internal/followup"
)

// CRM is the read side of the CRM collaborator.
type CRM interface {
	ListOpenDeals(ctx context.Context) ([]Deal, error)
	// GetContact returns nil when the deal has no associated contact.
	GetContact(ctx context.Context, dealID string) (*Contact, error)
	// GetRecentEmails returns at most limit emails, newest first.
	GetRecentEmails(ctx context.Context, dealID string, limit int) ([]EmailSummary, error)
	GetOwnerEmail(ctx context.Context, ownerID string) (string, error)
}

// Scorer classifies the urgency of a stale deal.
type Scorer interface {
	ScoreUrgency(ctx context.Context, deal DealContext) (UrgencyResult, error)
}

// Drafter writes the follow-up email for a scored deal.
type Drafter interface {
	DraftEmail(ctx context.Context, deal DealContext, urgency UrgencyResult) (EmailDraft, error)
}

// CardPoster posts the approval card and returns its message reference.
type CardPoster interface {
	PostCard(ctx context.Context, record followup.Record) (string, error)
}

// Thresholds returns the staleness threshold in days for a deal stage.
type Thresholds interface {
	ThresholdFor(stage string) int
}
