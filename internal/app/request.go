package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
)

// Overrides adjust a single request. Nil and empty fields keep the service defaults.
type Overrides struct {
	Platform                 string   `json:"platform,omitempty"`
	Strategy                 string   `json:"strategy,omitempty"`
	MinScoreThreshold        *float64 `json:"min_score_threshold,omitempty"`
	ScoreDifferenceThreshold *float64 `json:"score_difference_threshold,omitempty"`
	PrefilterEnabled         *bool    `json:"prefilter_enabled,omitempty"`
	PrefilterMinScore        *float64 `json:"prefilter_min_score,omitempty"`
}

// SuggestionRequest asks which of an account's opportunities a transcript is about.
type SuggestionRequest struct {
	Transcript string   `json:"transcript"`
	Email      string   `json:"email"`
	AccountID  string   `json:"account_id"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

// RankRequest ranks opportunities the caller already holds.
type RankRequest struct {
	Transcript    string              `json:"transcript"`
	UserIDs       []string            `json:"user_ids,omitempty"`
	Opportunities []model.Opportunity `json:"opportunities"`
	LineItems     []model.LineItem    `json:"line_items,omitempty"`
	Products      []model.Product     `json:"products,omitempty"`
	// StageTable names the weight table; empty means general.
	StageTable string `json:"stage_table,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	suggestion.Policy
	Platform   string             `json:"platform,omitempty"`
	Strategy   string             `json:"strategy"`
	StageTable string             `json:"stageTable"`
	RequestID  string             `json:"requestId"`
	Outcome    suggestion.Outcome `json:"outcome"`
	Dropped    int                `json:"prefilterDropped"`
	Candidates int                `json:"candidates"`
}

// Response is the ranked output envelope.
type Response struct {
	Result   []model.RankedOpportunity `json:"result"`
	Error    *string                   `json:"error"`
	Metadata Metadata                  `json:"metadata"`
}

// Suggested returns the suggested record, if any.
func (r *Response) Suggested() (model.RankedOpportunity, bool) {
	for _, o := range r.Result {
		if o.Suggested {
			return o, true
		}
	}
	return model.RankedOpportunity{}, false
}

// policy merges the overrides onto base.
func (o Overrides) policy(base suggestion.Policy) suggestion.Policy {
	p := base
	if o.MinScoreThreshold != nil {
		p.MinScore = *o.MinScoreThreshold
	}
	if o.ScoreDifferenceThreshold != nil {
		p.Margin = *o.ScoreDifferenceThreshold
	}
	if o.PrefilterEnabled != nil {
		p.PrefilterEnabled = *o.PrefilterEnabled
	}
	if o.PrefilterMinScore != nil {
		p.PrefilterMinScore = *o.PrefilterMinScore
	}
	return p
}

func (r SuggestionRequest) missing() []string {
	var out []string
	if strings.TrimSpace(r.Transcript) == "" {
		out = append(out, "transcript")
	}
	if strings.TrimSpace(r.Email) == "" {
		out = append(out, "email")
	}
	if strings.TrimSpace(r.AccountID) == "" {
		out = append(out, "account_id")
	}
	return out
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id for responses and logs.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
