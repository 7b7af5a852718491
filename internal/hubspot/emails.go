package hubspot

import (
	"context"
	"sort"

	"deal_followup_backend/platform/sanitize"
)

const (
	// PreviewLength bounds the email body kept for prompts.
	PreviewLength = 500
	batchReadMax  = 100
	noSubject     = "(no subject)"
)

var emailProperties = []string{"hs_email_subject", "hs_email_from", "hs_email_to", "hs_email_text", "hs_timestamp"}

// GetRecentEmails returns up to limit emails logged on dealID, newest first.
func (c *Client) GetRecentEmails(ctx context.Context, dealID string, limit int) ([]Email, error) {
	ids, err := c.associatedIDs(ctx, "deals", dealID, "emails", batchReadMax)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 || limit <= 0 {
		return []Email{}, nil
	}

	inputs := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		inputs = append(inputs, map[string]string{"id": id})
	}
	request := map[string]interface{}{
		"properties": emailProperties,
		"inputs":     inputs,
	}

	var page objectPage
	if err := c.do(ctx, "POST", "/crm/v3/objects/emails/batch/read", request, &page); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(page.Results))
	for _, obj := range page.Results {
		emails = append(emails, emailFromObject(obj))
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Timestamp.After(emails[j].Timestamp)
	})
	if len(emails) > limit {
		emails = emails[:limit]
	}
	return emails, nil
}

func emailFromObject(obj object) Email {
	p := obj.Properties
	e := Email{
		ID:          obj.ID,
		Subject:     p["hs_email_subject"],
		From:        p["hs_email_from"],
		To:          p["hs_email_to"],
		BodyPreview: sanitize.Preview(p["hs_email_text"], PreviewLength),
	}
	if e.Subject == "" {
		e.Subject = noSubject
	}
	if ts := parseTime(p["hs_timestamp"]); ts != nil {
		e.Timestamp = *ts
	}
	return e
}
