package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/logger"
)

type fakeNotes struct {
	dealID string
	text   string
	calls  int
	err    error
}

func (f *fakeNotes) CreateNote(_ context.Context, dealID, text string) (string, error) {
	f.calls++
	f.dealID = dealID
	f.text = text
	if f.err != nil {
		return "", f.err
	}
	return "note-1", nil
}

type fakeSender struct {
	calls int
	err   error
}

func (f *fakeSender) SendFollowUp(context.Context, followup.Record) error {
	f.calls++
	return f.err
}

func approvedRecord() followup.Record {
	return followup.Record{
		ID:           "fu-1",
		DealID:       "d1",
		DealName:     "Acme Renewal",
		ContactName:  "Jane Doe",
		ContactEmail: "jane@acme.test",
		OwnerEmail:   "owner@example.com",
		UrgencyScore: followup.UrgencyHigh,
		DraftSubject: "Checking in",
		DraftBody:    "Hi Jane,\n\nAny update on the <renewal>?\nThanks",
		Status:       followup.StatusPending,
	}
}

func TestNoteSenderWritesDealNote(t *testing.T) {
	notes := &fakeNotes{}
	if err := NewNoteSender(notes).SendFollowUp(context.Background(), approvedRecord()); err != nil {
		t.Fatalf("SendFollowUp: %v", err)
	}
	if notes.dealID != "d1" {
		t.Errorf("note attached to %q", notes.dealID)
	}
	want := "[Follow-Up Draft — Approved]\nTo: jane@acme.test\nSubject: Checking in\n\nHi Jane,"
	if !strings.HasPrefix(notes.text, want) {
		t.Errorf("unexpected note body %q", notes.text)
	}
}

func TestMultiSenderStopsAtFirstFailure(t *testing.T) {
	notes := &fakeNotes{err: errors.New("hubspot down")}
	smtp := &fakeSender{}
	m := &MultiSender{
		senders: []namedSender{
			{name: "crm_note", sender: NewNoteSender(notes)},
			{name: "smtp", sender: smtp},
		},
		log: logger.New("development"),
	}

	err := m.SendFollowUp(context.Background(), approvedRecord())
	if err == nil || !strings.Contains(err.Error(), "crm_note") {
		t.Fatalf("expected crm_note failure, got %v", err)
	}
	if smtp.calls != 0 {
		t.Fatalf("smtp should not run after the note failed")
	}
}

func TestMultiSenderRunsAllSteps(t *testing.T) {
	notes := &fakeNotes{}
	smtp := &fakeSender{}
	m := &MultiSender{
		senders: []namedSender{
			{name: "crm_note", sender: NewNoteSender(notes)},
			{name: "smtp", sender: smtp},
		},
		log: logger.New("development"),
	}

	if err := m.SendFollowUp(context.Background(), approvedRecord()); err != nil {
		t.Fatalf("SendFollowUp: %v", err)
	}
	if notes.calls != 1 || smtp.calls != 1 {
		t.Fatalf("expected one call each, got note=%d smtp=%d", notes.calls, smtp.calls)
	}
}

func TestNewMultiSenderChannels(t *testing.T) {
	log := logger.New("development")
	if got := NewMultiSender(&fakeNotes{}, nil, log).Channels(); len(got) != 1 || got[0] != "crm_note" {
		t.Fatalf("unexpected channels without smtp: %v", got)
	}
	smtp := &SMTPSender{host: "localhost", port: 2525, fromEmail: "sales@example.com"}
	if got := NewMultiSender(&fakeNotes{}, smtp, log).Channels(); len(got) != 2 || got[1] != "smtp" {
		t.Fatalf("unexpected channels with smtp: %v", got)
	}
}

type smtpSettings struct{ host string }

func (s smtpSettings) GetSMTPHost() string      { return s.host }
func (s smtpSettings) GetSMTPPort() int         { return 587 }
func (s smtpSettings) GetSMTPUsername() string  { return "user" }
func (s smtpSettings) GetSMTPPassword() string  { return "pass" }
func (s smtpSettings) GetSMTPFromEmail() string { return "sales@example.com" }
func (s smtpSettings) GetSMTPFromName() string  { return "Sales Team" }
func (s smtpSettings) IsSMTPEnabled() bool      { return s.host != "" }

func TestNewSMTPSenderDisabledWithoutHost(t *testing.T) {
	if s := NewSMTPSender(smtpSettings{}); s != nil {
		t.Fatalf("expected nil sender, got %+v", s)
	}
	if s := NewSMTPSender(smtpSettings{host: "smtp.example.com"}); s == nil {
		t.Fatal("expected sender when host is set")
	}
}

func TestSMTPMessageContent(t *testing.T) {
	s := NewSMTPSender(smtpSettings{host: "smtp.example.com"})
	msg, err := s.buildMessage(approvedRecord())
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"Subject: Checking in",
		"jane@acme.test",
		"Reply-To: <owner@example.com>",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPMessageSkipsUnknownOwner(t *testing.T) {
	s := NewSMTPSender(smtpSettings{host: "smtp.example.com"})
	r := approvedRecord()
	r.OwnerEmail = followup.FallbackOwnerEmail
	msg, err := s.buildMessage(r)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if strings.Contains(buf.String(), "Reply-To") {
		t.Error("unknown owner should not become Reply-To")
	}
}

func TestFollowUpTemplateEscapesDraft(t *testing.T) {
	r := approvedRecord()
	html, err := renderEmailTemplate("followup.html", newFollowUpEmailData(r.DraftSubject, r.DraftBody))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<renewal>") {
		t.Error("draft markup must be escaped")
	}
	if !strings.Contains(html, "&lt;renewal&gt;") {
		t.Errorf("expected escaped text, got %s", html)
	}
	if strings.Count(html, "<p ") != 2 {
		t.Errorf("expected two paragraphs, got %s", html)
	}
	if !strings.Contains(html, "<title>Checking in</title>") {
		t.Errorf("expected subject as title, got %s", html)
	}
}
