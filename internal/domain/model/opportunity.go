// Package model contains domain models passed between layers.
package model

import "time"

// Opportunity is a CRM sales deal snapshot fetched for one ranking request.
type Opportunity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Stage     string    `json:"stage"`
	OwnerID   string    `json:"owner_id"`
	AccountID string    `json:"account_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// LineItem is a product line attached to an opportunity.
type LineItem struct {
	ID            string  `json:"id"`
	OpportunityID string  `json:"opportunity_id"`
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	Quantity      float64 `json:"quantity"`
}

// Product is a catalog entry from the lookup store.
type Product struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// User is a sales representative known to the lookup store.
type User struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name,omitempty" db:"name"`
}

// RankedOpportunity is the per-request output record.
type RankedOpportunity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Stage     string  `json:"stage"`
	OwnerID   string  `json:"owner_id"`
	Rank      float64 `json:"rank"`
	Suggested bool    `json:"suggested"`
}

// Filter narrows connector queries. Empty slices mean no restriction.
type Filter struct {
	OwnerIDs   []string
	ProductIDs []string
}

// NewRanked builds an unsuggested output record for opp with the given score.
func NewRanked(opp Opportunity, score float64) RankedOpportunity {
	return RankedOpportunity{
		ID:      opp.ID,
		Name:    opp.Name,
		Stage:   opp.Stage,
		OwnerID: opp.OwnerID,
		Rank:    score,
	}
}

// GroupLineItems indexes line items by opportunity id. Items without an
// opportunity id are dropped.
func GroupLineItems(items []LineItem) map[string][]LineItem {
	out := make(map[string][]LineItem)
	for _, it := range items {
		if it.OpportunityID == "" {
			continue
		}
		out[it.OpportunityID] = append(out[it.OpportunityID], it)
	}
	return out
}
