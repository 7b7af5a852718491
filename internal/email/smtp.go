package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/config"
)

// SMTPSender delivers the approved draft to the contact over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	// replyToOwner sets Reply-To to the deal owner when it is known.
	replyToOwner bool
}

// NewSMTPSender creates an SMTPSender from the SMTP settings. It returns nil
// when SMTP is not configured.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if !cfg.IsSMTPEnabled() {
		return nil
	}
	return &SMTPSender{
		host:         cfg.GetSMTPHost(),
		port:         cfg.GetSMTPPort(),
		username:     cfg.GetSMTPUsername(),
		password:     cfg.GetSMTPPassword(),
		fromName:     cfg.GetSMTPFromName(),
		fromEmail:    cfg.GetSMTPFromEmail(),
		replyToOwner: true,
	}
}

// buildMessage renders the draft as a multipart text/HTML message.
func (s *SMTPSender) buildMessage(record followup.Record) (*gomail.Msg, error) {
	html, err := renderEmailTemplate("followup.html", newFollowUpEmailData(record.DraftSubject, record.DraftBody))
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.AddToFormat(record.ContactName, record.ContactEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	if s.replyToOwner && record.OwnerEmail != "" && record.OwnerEmail != followup.FallbackOwnerEmail {
		if err := msg.ReplyTo(record.OwnerEmail); err != nil {
			return nil, fmt.Errorf("smtp reply-to: %w", err)
		}
	}
	msg.Subject(record.DraftSubject)
	msg.SetBodyString(gomail.TypeTextPlain, record.DraftBody)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}

// SendFollowUp emails the draft to the record's contact.
func (s *SMTPSender) SendFollowUp(ctx context.Context, record followup.Record) error {
	msg, err := s.buildMessage(record)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
