package approval

import (
	"context"
	"errors"
	"time"

	"deal_followup_backend/internal/events"
	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
)

// Sender delivers an approved follow-up. It must not return before the
// delivery is durable on the other side.
type Sender interface {
	SendFollowUp(ctx context.Context, record followup.Record) error
}

// CardUpdater rewrites a posted approval card to show the outcome.
type CardUpdater interface {
	UpdateCard(ctx context.Context, messageRef string, outcome followup.Status, dealName string) error
}

// Executor applies approve and dismiss decisions. It is the only writer of
// existing records.
type Executor struct {
	store  store.Store
	sender Sender
	cards  CardUpdater
	bus    events.Bus
	locks  *followup.KeyedMutex
	now    func() time.Time
	log    *logger.Logger
}

// NewExecutor wires an executor. bus may be nil.
func NewExecutor(s store.Store, sender Sender, cards CardUpdater, bus events.Bus, log *logger.Logger) *Executor {
	return &Executor{
		store:  s,
		sender: sender,
		cards:  cards,
		bus:    bus,
		locks:  followup.NewKeyedMutex(),
		now:    time.Now,
		log:    log,
	}
}

// Approve sends the drafted email and marks the record sent. When the send
// fails the record stays pending and the error is returned.
func (e *Executor) Approve(ctx context.Context, id string) (followup.Record, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	record, err := e.loadPending(ctx, id)
	if err != nil {
		return followup.Record{}, err
	}

	if err := e.sender.SendFollowUp(ctx, record); err != nil {
		e.log.WithContext(ctx).CollaboratorError("sender", "send_follow_up", err)
		return followup.Record{}, apperr.Upstream("failed to send follow-up", err)
	}

	updated, err := e.store.Update(ctx, id, followup.MarkSent(e.now()))
	if err != nil {
		e.log.WithContext(ctx).Error("follow-up delivered but not marked sent", "followUpId", id, "error", err)
		return followup.Record{}, err
	}

	e.finish(ctx, updated, events.FollowUpSent{BaseEvent: events.NewBaseEvent(), Record: updated})
	return updated, nil
}

// Dismiss closes the record without sending anything.
func (e *Executor) Dismiss(ctx context.Context, id string) (followup.Record, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	if _, err := e.loadPending(ctx, id); err != nil {
		return followup.Record{}, err
	}

	updated, err := e.store.Update(ctx, id, followup.MarkDismissed())
	if err != nil {
		return followup.Record{}, err
	}

	e.finish(ctx, updated, events.FollowUpDismissed{BaseEvent: events.NewBaseEvent(), Record: updated})
	return updated, nil
}

func (e *Executor) loadPending(ctx context.Context, id string) (followup.Record, error) {
	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, followup.ErrNotFound) {
			e.log.WithContext(ctx).DatabaseError("get_follow_up", err)
		}
		return followup.Record{}, err
	}
	if record.Status != followup.StatusPending {
		return followup.Record{}, followup.ErrAlreadyProcessed
	}
	return record, nil
}

// finish updates the card and publishes the event. Neither can undo the
// transition, so failures are only logged.
func (e *Executor) finish(ctx context.Context, record followup.Record, event events.Event) {
	if record.MessageRef != "" && e.cards != nil {
		if err := e.cards.UpdateCard(ctx, record.MessageRef, record.Status, record.DealName); err != nil {
			e.log.WithContext(ctx).CollaboratorError("chat", "update_card", err)
		}
	}
	if e.bus != nil {
		e.bus.Publish(ctx, event)
	}
	e.log.WithContext(ctx).Info("follow-up processed", "followUpId", record.ID, "dealId", record.DealID, "status", record.Status)
}
