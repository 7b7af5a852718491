package slack

import (
	"fmt"
	"strings"

	"deal_followup_backend/internal/followup"

	slackapi "github.com/slack-go/slack"
)

// Action ids carried by the approval card buttons.
const (
	ActionApproveSend = "approve_send"
	ActionDismiss     = "dismiss"
)

var urgencyEmoji = map[followup.Urgency]string{
	followup.UrgencyCritical: ":red_circle:",
	followup.UrgencyHigh:     ":large_orange_circle:",
	followup.UrgencyMedium:   ":large_yellow_circle:",
	followup.UrgencyLow:      ":white_circle:",
}

func mrkdwn(s string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.MarkdownType, s, false, false)
}

func plainText(s string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.PlainTextType, s, true, false)
}

// UrgencyEmoji returns the card emoji for u.
func UrgencyEmoji(u followup.Urgency) string {
	if e, ok := urgencyEmoji[u]; ok {
		return e
	}
	return ":white_circle:"
}

// CardFallbackText is the notification text shown where blocks are not.
func CardFallbackText(r followup.Record) string {
	return "Follow-up needed: " + r.DealName
}

// ApprovalCard renders the review card for a pending record.
func ApprovalCard(r followup.Record) []slackapi.Block {
	contact := r.ContactName
	if r.ContactPhone != "" {
		contact += " (" + r.ContactPhone + ")"
	}

	approve := slackapi.NewButtonBlockElement(ActionApproveSend, r.ID, plainText("Approve & Send")).
		WithStyle(slackapi.StylePrimary)
	dismiss := slackapi.NewButtonBlockElement(ActionDismiss, r.ID, plainText("Dismiss")).
		WithStyle(slackapi.StyleDanger)

	return []slackapi.Block{
		slackapi.NewHeaderBlock(plainText(r.DealName)),
		slackapi.NewSectionBlock(nil, []*slackapi.TextBlockObject{
			mrkdwn(fmt.Sprintf("*Urgency:* %s %s", UrgencyEmoji(r.UrgencyScore), strings.ToUpper(string(r.UrgencyScore)))),
			mrkdwn("*Contact:* " + contact),
			mrkdwn("*Email:* " + r.ContactEmail),
			mrkdwn("*Owner:* " + r.OwnerEmail),
		}, nil),
		slackapi.NewSectionBlock(mrkdwn("*Why:* "+r.UrgencyReason), nil, nil),
		slackapi.NewDividerBlock(),
		slackapi.NewSectionBlock(mrkdwn(fmt.Sprintf("*Subject:* %s\n\n%s", r.DraftSubject, r.DraftBody)), nil, nil),
		slackapi.NewDividerBlock(),
		slackapi.NewActionBlock("followup_actions", approve, dismiss),
	}
}

// OutcomeText is the text that replaces a card once it is decided.
func OutcomeText(outcome followup.Status, dealName string) string {
	if outcome == followup.StatusSent {
		return fmt.Sprintf(":white_check_mark: *Sent* — Follow-up email for *%s* has been sent.", dealName)
	}
	return fmt.Sprintf(":x: *Dismissed* — Follow-up for *%s* was dismissed.", dealName)
}

// OutcomeCard is the single-section card shown after a decision.
func OutcomeCard(outcome followup.Status, dealName string) []slackapi.Block {
	return []slackapi.Block{slackapi.NewSectionBlock(mrkdwn(OutcomeText(outcome, dealName)), nil, nil)}
}
