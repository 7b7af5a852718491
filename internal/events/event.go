// Package events provides the follow-up lifecycle events published by the
// pipeline and the approval executor.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

const (
	NameFollowUpCreated   = "followup.created"
	NameFollowUpSent      = "followup.sent"
	NameFollowUpDismissed = "followup.dismissed"
	NamePipelineCompleted = "pipeline.run.completed"
)

// LifecycleEvent is implemented by every event that carries the record it
// concerns. Sinks that only need the record (archive, stream) use it.
type LifecycleEvent interface {
	Event
	FollowUp() followup.Record
}

// FollowUpCreated is published after a pending record is stored and its
// approval card is posted.
type FollowUpCreated struct {
	BaseEvent
	RunID  string          `json:"runId"`
	Record followup.Record `json:"record"`
}

func (e FollowUpCreated) EventName() string { return NameFollowUpCreated }
func (e FollowUpCreated) FollowUp() followup.Record { return e.Record }

// FollowUpSent is published after the email was delivered and the record
// moved to sent.
type FollowUpSent struct {
	BaseEvent
	Record followup.Record `json:"record"`
}

func (e FollowUpSent) EventName() string { return NameFollowUpSent }
func (e FollowUpSent) FollowUp() followup.Record { return e.Record }

// FollowUpDismissed is published after a reviewer dismissed a draft.
type FollowUpDismissed struct {
	BaseEvent
	Record followup.Record `json:"record"`
}

func (e FollowUpDismissed) EventName() string { return NameFollowUpDismissed }
func (e FollowUpDismissed) FollowUp() followup.Record { return e.Record }

// PipelineCompleted summarizes a finished run.
type PipelineCompleted struct {
	BaseEvent
	RunID            string        `json:"runId"`
	StaleDealsFound  int           `json:"staleDealsFound"`
	FollowUpsCreated int           `json:"followUpsCreated"`
	Skipped          int           `json:"skipped"`
	Duration         time.Duration `json:"duration"`
}

func (e PipelineCompleted) EventName() string { return NamePipelineCompleted }

// LifecycleNames lists the events that carry a record.
func LifecycleNames() []string {
	return []string{NameFollowUpCreated, NameFollowUpSent, NameFollowUpDismissed}
}

// Envelope is the serialized form of a lifecycle event written to external
// sinks.
type Envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurredAt"`
	Record     followup.Record `json:"record"`
}

// NewEnvelope wraps a lifecycle event for a sink.
func NewEnvelope(e LifecycleEvent) Envelope {
	return Envelope{Event: e.EventName(), OccurredAt: e.OccurredAt().UTC(), Record: e.FollowUp()}
}
