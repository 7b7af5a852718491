package hubspot

import (
	"context"
	"fmt"
	"net/url"

	"deal_followup_backend/platform/apperr"
)

// GetOwnerEmail resolves a HubSpot owner id to an email address.
func (c *Client) GetOwnerEmail(ctx context.Context, ownerID string) (string, error) {
	var owner struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, "GET", "/crm/v3/owners/"+url.PathEscape(ownerID), nil, &owner); err != nil {
		if IsNotFound(err) {
			return "", apperr.NotFound("owner not found").WithOp("owner " + ownerID)
		}
		return "", fmt.Errorf("get owner %s: %w", ownerID, err)
	}
	if owner.Email == "" {
		return "", apperr.NotFound("owner has no email").WithOp("owner " + ownerID)
	}
	return owner.Email, nil
}
