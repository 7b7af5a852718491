// Package followup holds the follow-up record model and its lifecycle rules.
// A record is created pending when an approval card is posted and moves
// exactly once to sent or dismissed.
package followup

import (
	"fmt"
	"strings"
	"time"
)

// FallbackOwnerEmail stands in for a deal owner the CRM could not resolve.
const FallbackOwnerEmail = "unknown@example.com"

// Status is the lifecycle state of a follow-up record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDismissed Status = "dismissed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusDismissed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Urgency is the severity classification assigned by scoring.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

var urgencyRank = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// Rank orders urgencies from most (0) to least severe. Unknown values sort last.
func (u Urgency) Rank() int {
	if r, ok := urgencyRank[u]; ok {
		return r
	}
	return len(urgencyRank)
}

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// ParseUrgency accepts a case-insensitive urgency name.
func ParseUrgency(raw string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(raw)))
	if !u.Valid() {
		return "", fmt.Errorf("unknown urgency %q", raw)
	}
	return u, nil
}

// Record is the persisted unit of work for one stale deal.
type Record struct {
	ID            string     `json:"id"`
	DealID        string     `json:"dealId"`
	DealName      string     `json:"dealName"`
	ContactName   string     `json:"contactName"`
	ContactEmail  string     `json:"contactEmail"`
	ContactPhone  string     `json:"contactPhone,omitempty"`
	OwnerEmail    string     `json:"ownerEmail"`
	UrgencyScore  Urgency    `json:"urgencyScore"`
	UrgencyReason string     `json:"urgencyReason"`
	DraftSubject  string     `json:"draftSubject"`
	DraftBody     string     `json:"draftBody"`
	Status        Status     `json:"status"`
	MessageRef    string     `json:"messageRef,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status     *Status
	SentAt     *time.Time
	MessageRef *string
}

// MarkSent is the patch for pending -> sent.
func MarkSent(at time.Time) Patch {
	status := StatusSent
	at = at.UTC()
	return Patch{Status: &status, SentAt: &at}
}

// MarkDismissed is the patch for pending -> dismissed.
func MarkDismissed() Patch {
	status := StatusDismissed
	return Patch{Status: &status}
}

// ValidateNew checks a record about to be created.
func (r Record) ValidateNew() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case strings.TrimSpace(r.DealID) == "":
		return fmt.Errorf("%w: dealId is required", ErrInvalidRecord)
	case strings.TrimSpace(r.ContactEmail) == "":
		return fmt.Errorf("%w: contactEmail is required", ErrInvalidRecord)
	case r.Status != StatusPending:
		return fmt.Errorf("%w: new records must be pending", ErrInvalidRecord)
	case r.SentAt != nil:
		return fmt.Errorf("%w: sentAt must be empty while pending", ErrInvalidRecord)
	case !r.UrgencyScore.Valid():
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidRecord, r.UrgencyScore)
	}
	return nil
}

// Apply merges p into r and returns the result. It is the single place the
// lifecycle rules are checked: only pending -> sent and pending -> dismissed
// are allowed, and sentAt is present exactly when the status is sent.
func (r Record) Apply(p Patch) (Record, error) {
	next := r

	if r.Status.Terminal() && (p.Status != nil || p.SentAt != nil) {
		return r, ErrAlreadyProcessed
	}

	if p.Status != nil && *p.Status != r.Status {
		if !p.Status.Terminal() {
			return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, *p.Status)
		}
		next.Status = *p.Status
	}
	if p.SentAt != nil {
		at := p.SentAt.UTC()
		next.SentAt = &at
	}
	if p.MessageRef != nil {
		next.MessageRef = *p.MessageRef
	}

	if (next.Status == StatusSent) != (next.SentAt != nil) {
		return r, fmt.Errorf("%w: sentAt must be set exactly when status is sent", ErrInvalidTransition)
	}

	return next, nil
}
