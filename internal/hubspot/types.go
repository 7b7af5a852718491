package hubspot

import (
	"encoding/json"
	"time"
)

// Deal is an open deal with the properties the pipeline reads.
type Deal struct {
	ID           string
	Name         string
	Stage        string
	Amount       *float64
	CloseDate    string
	OwnerID      string
	LastModified *time.Time
}

// Contact is the primary contact on a deal.
type Contact struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Company   string
	Phone     string
}

// Email is one logged email engagement.
type Email struct {
	ID          string
	Subject     string
	From        string
	To          string
	Timestamp   time.Time
	BodyPreview string
}

type object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type objectPage struct {
	Results []object `json:"results"`
	Paging  *paging  `json:"paging,omitempty"`
}

type paging struct {
	Next *struct {
		After string `json:"after"`
	} `json:"next,omitempty"`
}

func (p *paging) nextAfter() string {
	if p == nil || p.Next == nil {
		return ""
	}
	return p.Next.After
}

type associationPage struct {
	Results []struct {
		ToObjectID json.Number `json:"toObjectId"`
	} `json:"results"`
	Paging *paging `json:"paging,omitempty"`
}

type associationSpec struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}
