// Package pipeline detects stale deals and turns each one into a pending
// follow-up: detect, score, draft, notify.
package pipeline

import (
	"time"

	"deal_followup_backend/internal/followup"
)

// MaxRecentEmails bounds the email history attached to a DealContext.
const MaxRecentEmails = 3

// FallbackOwnerEmail is used when the deal owner cannot be resolved.
const FallbackOwnerEmail = followup.FallbackOwnerEmail

// Deal is an open deal as reported by the CRM.
type Deal struct {
	ID           string
	Name         string
	Stage        string
	Amount       *float64
	CloseDate    string
	OwnerID      string
	LastModified *time.Time
}

// Contact is the primary contact associated with a deal.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Phone     string
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// EmailSummary is one message from the deal's email history.
type EmailSummary struct {
	Subject     string    `json:"subject"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Date        time.Time `json:"date"`
	BodyPreview string    `json:"bodyPreview"`
}

// DealContext is everything scoring and drafting know about a stale deal.
// It lives for one run.
type DealContext struct {
	DealID                string         `json:"dealId" validate:"required"`
	DealName              string         `json:"dealName"`
	DealStage             string         `json:"dealStage"`
	Amount                *float64       `json:"amount" validate:"omitempty,gte=0"`
	CloseDate             string         `json:"closeDate,omitempty"`
	OwnerEmail            string         `json:"ownerEmail"`
	ContactName           string         `json:"contactName"`
	ContactEmail          string         `json:"contactEmail" validate:"required"`
	ContactPhone          string         `json:"contactPhone,omitempty"`
	CompanyName           string         `json:"companyName,omitempty"`
	DaysSinceLastActivity int            `json:"daysSinceLastActivity" validate:"gte=0"`
	RecentEmails          []EmailSummary `json:"recentEmails"`
	Notes                 []string       `json:"notes"`
}

// UrgencyResult is the scoring outcome for one deal.
type UrgencyResult struct {
	Score  followup.Urgency
	Reason string
}

// EmailDraft is the drafted follow-up for one deal.
type EmailDraft struct {
	Subject string
	Body    string
}

// ScoredDeal pairs a deal with its urgency.
type ScoredDeal struct {
	Deal    DealContext
	Urgency UrgencyResult
}

// DraftedDeal is a scored deal with its draft attached.
type DraftedDeal struct {
	Deal    DealContext
	Urgency UrgencyResult
	Draft   EmailDraft
}

// Result summarizes a pipeline run.
type Result struct {
	RunID            string
	StaleDealsFound  int
	FollowUpsCreated int
	Skipped          int
	Records          []followup.Record
}

// FailurePolicy decides what a per-deal collaborator failure does to the run.
type FailurePolicy string

const (
	// FailureAbort stops the run at the first per-deal failure.
	FailureAbort FailurePolicy = "abort"
	// FailureSkip logs the failure, drops the deal and continues.
	FailureSkip FailurePolicy = "skip"
)

// ParseFailurePolicy maps a config value to a policy. Unknown values abort.
func ParseFailurePolicy(raw string) FailurePolicy {
	if FailurePolicy(raw) == FailureSkip {
		return FailureSkip
	}
	return FailureAbort
}
