package hubspot

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dealPageSize = 100

var dealProperties = []string{
	"dealname",
	"dealstage",
	"amount",
	"closedate",
	"hubspot_owner_id",
	"hs_lastmodifieddate",
	"hs_is_closed",
}

// ListOpenDeals pages through every deal that is not closed.
func (c *Client) ListOpenDeals(ctx context.Context) ([]Deal, error) {
	var (
		deals []Deal
		after string
	)

	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(dealPageSize))
		q.Set("properties", strings.Join(dealProperties, ","))
		q.Set("archived", "false")
		if after != "" {
			q.Set("after", after)
		}

		var page objectPage
		if err := c.do(ctx, "GET", "/crm/v3/objects/deals?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}

		for _, obj := range page.Results {
			if obj.Properties["hs_is_closed"] == "true" {
				continue
			}
			deals = append(deals, dealFromObject(obj))
		}

		after = page.Paging.nextAfter()
		if after == "" {
			return deals, nil
		}
	}
}

func dealFromObject(obj object) Deal {
	p := obj.Properties
	d := Deal{
		ID:           obj.ID,
		Name:         strings.TrimSpace(p["dealname"]),
		Stage:        p["dealstage"],
		CloseDate:    p["closedate"],
		OwnerID:      p["hubspot_owner_id"],
		LastModified: parseTime(p["hs_lastmodifieddate"]),
	}
	if raw := strings.TrimSpace(p["amount"]); raw != "" {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			d.Amount = &amount
		}
	}
	return d
}

// parseTime accepts RFC 3339 timestamps and epoch milliseconds, both of which
// HubSpot uses for date properties.
func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t = t.UTC()
		return &t
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}
