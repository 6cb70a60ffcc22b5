// Package scoring turns one opportunity plus its evidence into a confidence
// value in [0,1].
//
// Two strategies implement Scorer: WeightedScorer blends lexical product
// evidence, stage priors and ownership with fixed weights; LLMScorer asks a
// language model. They are not interchangeable and never fall back to each
// other.
package scoring

import (
	"context"
	"fmt"

	"github.com/okian/oppsuggest/internal/domain/lexical"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/stage"
)

// Strategy names.
const (
	StrategyDeterministic = "deterministic"
	StrategyLLM           = "llm"
)

// Blend weights. With line items the product signal carries half the mass;
// without them it is redistributed to stage and owner.
const (
	productWeight          = 0.5
	stageWeightWithItems   = 0.4
	ownerWeightWithItems   = 0.1
	stageWeightWithoutItem = 0.8
	ownerWeightWithoutItem = 0.2
)

// Input carries everything needed to score one opportunity.
type Input struct {
	Opportunity model.Opportunity
	LineItems   []model.LineItem
	Transcript  string
	UserIDs     []string
	// Table overrides the scorer's default stage table when set.
	Table *stage.Table
	// Products the requesting representative sells. Only the LLM strategy reads it.
	Products []model.Product
}

// Breakdown records the component signals behind a deterministic score.
type Breakdown struct {
	ProductMatch float64 `json:"product_match"`
	StageWeight  float64 `json:"stage_weight"`
	OwnerMatch   float64 `json:"owner_match"`
	HasProducts  bool    `json:"has_products"`
	Raw          float64 `json:"raw"`
	Table        string  `json:"stage_table,omitempty"`
}

// Result contains the computed score for an opportunity.
type Result struct {
	OpportunityID string
	Score         float64
	Strategy      string
	Breakdown     *Breakdown
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// OwnerMatch is 1 when ownerID is non-empty and listed in userIDs, else 0.
func OwnerMatch(ownerID string, userIDs []string) float64 {
	if ownerID == "" || len(userIDs) == 0 {
		return 0
	}
	for _, id := range userIDs {
		if id == ownerID {
			return 1
		}
	}
	return 0
}

// Blend combines component signals into a clamped score.
func Blend(productMatch, stageWeight, ownerMatch float64, hasProducts bool) float64 {
	return clamp01(blend(productMatch, stageWeight, ownerMatch, hasProducts))
}

// blend is the unclamped weighted sum.
func blend(productMatch, stageWeight, ownerMatch float64, hasProducts bool) float64 {
	if hasProducts {
		return productWeight*productMatch + stageWeightWithItems*stageWeight + ownerWeightWithItems*ownerMatch
	}
	return stageWeightWithoutItem*stageWeight + ownerWeightWithoutItem*ownerMatch
}

// Explain computes the component signals for one opportunity.
func Explain(opp model.Opportunity, items []model.LineItem, transcript string, userIDs []string, table *stage.Table) Breakdown {
	b := Breakdown{
		HasProducts: len(items) > 0,
		StageWeight: table.Weight(opp.Stage),
		OwnerMatch:  OwnerMatch(opp.OwnerID, userIDs),
		Table:       table.Name(),
	}
	if b.HasProducts {
		b.ProductMatch = lexical.ProductMatch(items, transcript)
	}
	b.Raw = blend(b.ProductMatch, b.StageWeight, b.OwnerMatch, b.HasProducts)
	return b
}

// ScoreOpportunity is the deterministic composite score in [0,1].
func ScoreOpportunity(opp model.Opportunity, items []model.LineItem, transcript string, userIDs []string, table *stage.Table) float64 {
	b := Explain(opp, items, transcript, userIDs, table)
	return clamp01(b.Raw)
}

// WeightedScorer implements Scorer with the deterministic blend.
type WeightedScorer struct {
	table *stage.Table
}

// NewWeightedScorer creates a deterministic scorer. The general stage table
// is used unless WithStageTable or Input.Table says otherwise.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{table: stage.NewGeneralTable()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the deterministic score and its breakdown.
func (s *WeightedScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	table := s.table
	if in.Table != nil {
		table = in.Table
	}
	b := Explain(in.Opportunity, in.LineItems, in.Transcript, in.UserIDs, table)
	return Result{
		OpportunityID: in.Opportunity.ID,
		Score:         clamp01(b.Raw),
		Strategy:      StrategyDeterministic,
		Breakdown:     &b,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
