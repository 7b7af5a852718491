package hubspot

import (
	"context"
	"net/url"
)

const contactProperties = "email,firstname,lastname,company,phone"

// GetContactForDeal returns the first contact associated with dealID, or nil
// when there is none.
func (c *Client) GetContactForDeal(ctx context.Context, dealID string) (*Contact, error) {
	ids, err := c.associatedIDs(ctx, "deals", dealID, "contacts", 1)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var obj object
	path := "/crm/v3/objects/contacts/" + url.PathEscape(ids[0]) + "?properties=" + url.QueryEscape(contactProperties)
	if err := c.do(ctx, "GET", path, nil, &obj); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &Contact{
		ID:        obj.ID,
		Email:     obj.Properties["email"],
		FirstName: obj.Properties["firstname"],
		LastName:  obj.Properties["lastname"],
		Company:   obj.Properties["company"],
		Phone:     obj.Properties["phone"],
	}, nil
}

// associatedIDs lists the ids of toType objects associated with the given
// object, following pagination until max ids are collected (max <= 0 means
// all of them).
func (c *Client) associatedIDs(ctx context.Context, fromType, fromID, toType string, max int) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		path := "/crm/v4/objects/" + fromType + "/" + url.PathEscape(fromID) + "/associations/" + toType + "?limit=500"
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}

		var page associationPage
		if err := c.do(ctx, "GET", path, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			ids = append(ids, r.ToObjectID.String())
			if max > 0 && len(ids) >= max {
				return ids, nil
			}
		}

		after = page.Paging.nextAfter()
		if after == "" {
			return ids, nil
		}
	}
}
