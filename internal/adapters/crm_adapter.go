package adapters

import (
	"context"

	"deal_followup_backend/internal/hubspot"
	"deal_followup_backend/internal/pipeline"
)

// CRMAdapter exposes the HubSpot client as the pipeline's CRM port.
type CRMAdapter struct {
	client *hubspot.Client
}

func NewCRMAdapter(client *hubspot.Client) *CRMAdapter {
	return &CRMAdapter{client: client}
}

func (a *CRMAdapter) ListOpenDeals(ctx context.Context) ([]pipeline.Deal, error) {
	deals, err := a.client.ListOpenDeals(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]pipeline.Deal, 0, len(deals))
	for _, d := range deals {
		out = append(out, pipeline.Deal{
			ID:           d.ID,
			Name:         d.Name,
			Stage:        d.Stage,
			Amount:       d.Amount,
			CloseDate:    d.CloseDate,
			OwnerID:      d.OwnerID,
			LastModified: d.LastModified,
		})
	}
	return out, nil
}

func (a *CRMAdapter) GetContact(ctx context.Context, dealID string) (*pipeline.Contact, error) {
	c, err := a.client.GetContactForDeal(ctx, dealID)
	if err != nil || c == nil {
		return nil, err
	}
	return &pipeline.Contact{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Company:   c.Company,
		Phone:     c.Phone,
	}, nil
}

func (a *CRMAdapter) GetRecentEmails(ctx context.Context, dealID string, limit int) ([]pipeline.EmailSummary, error) {
	emails, err := a.client.GetRecentEmails(ctx, dealID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]pipeline.EmailSummary, 0, len(emails))
	for _, e := range emails {
		out = append(out, pipeline.EmailSummary{
			Subject:     e.Subject,
			From:        e.From,
			To:          e.To,
			Date:        e.Timestamp,
			BodyPreview: e.BodyPreview,
		})
	}
	return out, nil
}

func (a *CRMAdapter) GetOwnerEmail(ctx context.Context, ownerID string) (string, error) {
	return a.client.GetOwnerEmail(ctx, ownerID)
}

var _ pipeline.CRM = (*CRMAdapter)(nil)
