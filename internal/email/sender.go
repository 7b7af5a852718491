// Package email delivers approved follow-ups. The CRM note is always written;
// SMTP delivery to the contact is added when configured.
package email

import (
	"context"
	"fmt"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/hubspot"
	"deal_followup_backend/platform/logger"
)

// Sender delivers one approved follow-up.
type Sender interface {
	SendFollowUp(ctx context.Context, record followup.Record) error
}

// NoteWriter logs text on a deal's CRM timeline.
type NoteWriter interface {
	CreateNote(ctx context.Context, dealID, text string) (string, error)
}

// NoteSender records the approved draft as a CRM note on the deal.
type NoteSender struct {
	notes NoteWriter
}

// NewNoteSender wraps a NoteWriter.
func NewNoteSender(notes NoteWriter) *NoteSender {
	return &NoteSender{notes: notes}
}

// SendFollowUp writes the note.
func (s *NoteSender) SendFollowUp(ctx context.Context, record followup.Record) error {
	_, err := s.notes.CreateNote(ctx, record.DealID, hubspot.NoteBody(record.ContactEmail, record.DraftSubject, record.DraftBody))
	return err
}

type namedSender struct {
	name   string
	sender Sender
}

// MultiSender runs its senders in order and stops at the first failure.
type MultiSender struct {
	senders []namedSender
	log     *logger.Logger
}

// NewMultiSender creates the delivery chain: the CRM note first, then SMTP
// when smtp is non-nil.
func NewMultiSender(notes NoteWriter, smtp *SMTPSender, log *logger.Logger) *MultiSender {
	senders := []namedSender{{name: "crm_note", sender: NewNoteSender(notes)}}
	if smtp != nil {
		senders = append(senders, namedSender{name: "smtp", sender: smtp})
	}
	return &MultiSender{senders: senders, log: log}
}

// SendFollowUp implements approval.Sender.
func (m *MultiSender) SendFollowUp(ctx context.Context, record followup.Record) error {
	for _, s := range m.senders {
		if err := s.sender.SendFollowUp(ctx, record); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		m.log.WithContext(ctx).Debug("follow-up delivered", "channel", s.name, "followUpId", record.ID)
	}
	return nil
}

// Channels lists the configured delivery steps in order.
func (m *MultiSender) Channels() []string {
	names := make([]string, len(m.senders))
	for i, s := range m.senders {
		names[i] = s.name
	}
	return names
}
