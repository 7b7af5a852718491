package hubspot

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// noteToDealAssociation is HubSpot's defined association type for note -> deal.
const noteToDealAssociation = 214

// NoteBody renders the timeline note that records an approved follow-up.
func NoteBody(contactEmail, subject, body string) string {
	return fmt.Sprintf("[Follow-Up Draft — Approved]\nTo: %s\nSubject: %s\n\n%s", contactEmail, subject, body)
}

// CreateNote logs text on the deal's timeline: the note is created first and
// then associated with the deal.
func (c *Client) CreateNote(ctx context.Context, dealID, text string) (string, error) {
	request := map[string]interface{}{
		"properties": map[string]string{
			"hs_note_body": text,
			"hs_timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}

	var note object
	if err := c.do(ctx, "POST", "/crm/v3/objects/notes", request, &note); err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}

	path := fmt.Sprintf("/crm/v4/objects/notes/%s/associations/deals/%s", url.PathEscape(note.ID), url.PathEscape(dealID))
	specs := []associationSpec{{AssociationCategory: "HUBSPOT_DEFINED", AssociationTypeID: noteToDealAssociation}}
	if err := c.do(ctx, "PUT", path, specs, nil); err != nil {
		return note.ID, fmt.Errorf("associate note %s with deal %s: %w", note.ID, dealID, err)
	}

	c.log.WithContext(ctx).Info("logged follow-up note", "dealId", dealID, "noteId", note.ID)
	return note.ID, nil
}
