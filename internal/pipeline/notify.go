package pipeline

import (
	"context"
	"errors"
	"time"

	"deal_followup_backend/internal/events"
	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"

	"github.com/google/uuid"
)

// NotifyStage posts one approval card per drafted deal and persists the
// pending record. It runs sequentially so store writes stay ordered.
type NotifyStage struct {
	cards  CardPoster
	store  store.Store
	bus    events.Bus
	policy FailurePolicy
	newID  func() string
	now    func() time.Time
	log    *logger.Logger
}

// Notify returns the records it persisted. On abort the records persisted
// before the failure are returned with the error and stay stored.
func (s *NotifyStage) Notify(ctx context.Context, deals []DraftedDeal) ([]followup.Record, int, error) {
	records := make([]followup.Record, 0, len(deals))
	skipped := 0

	for _, dd := range deals {
		record, err := s.notifyOne(ctx, dd)
		switch {
		case err == nil:
			records = append(records, record)
		case errors.Is(err, followup.ErrDuplicatePending):
			s.log.WithContext(ctx).Warn("approval card orphaned: deal already has a pending follow-up",
				"dealId", dd.Deal.DealID, "followUpId", record.ID, "messageRef", record.MessageRef)
			skipped++
		case s.policy == FailureSkip:
			s.log.WithContext(ctx).Warn("skipping deal after notification failure", "dealId", dd.Deal.DealID, "error", err)
			skipped++
		default:
			return records, skipped, err
		}
	}
	return records, skipped, nil
}

func (s *NotifyStage) notifyOne(ctx context.Context, dd DraftedDeal) (followup.Record, error) {
	record := NewRecord(s.newID(), s.now(), dd)

	ref, err := s.cards.PostCard(ctx, record)
	if err != nil {
		return record, apperr.Upstream("failed to post approval card", err).WithOp("deal " + dd.Deal.DealID)
	}
	record.MessageRef = ref

	if err := s.store.Create(ctx, record); err != nil {
		if !errors.Is(err, followup.ErrDuplicatePending) {
			s.log.WithContext(ctx).Error("approval card orphaned: record not persisted",
				"dealId", dd.Deal.DealID, "followUpId", record.ID, "messageRef", ref, "error", err)
		}
		return record, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.FollowUpCreated{
			BaseEvent: events.NewBaseEvent(),
			RunID:     runIDFrom(ctx),
			Record:    record,
		})
	}
	return record, nil
}

// NewRecord builds the pending record for a drafted deal.
func NewRecord(id string, now time.Time, dd DraftedDeal) followup.Record {
	return followup.Record{
		ID:            id,
		DealID:        dd.Deal.DealID,
		DealName:      dd.Deal.DealName,
		ContactName:   dd.Deal.ContactName,
		ContactEmail:  dd.Deal.ContactEmail,
		ContactPhone:  dd.Deal.ContactPhone,
		OwnerEmail:    dd.Deal.OwnerEmail,
		UrgencyScore:  dd.Urgency.Score,
		UrgencyReason: dd.Urgency.Reason,
		DraftSubject:  dd.Draft.Subject,
		DraftBody:     dd.Draft.Body,
		Status:        followup.StatusPending,
		CreatedAt:     now.UTC(),
	}
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(logger.RunIDKey).(string)
	return id
}

func newRecordID() string {
	return uuid.NewString()
}
