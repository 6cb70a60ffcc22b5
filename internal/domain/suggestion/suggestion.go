// Package suggestion decides whether one ranked opportunity is confident
// enough to surface as the suggestion for a transcript.
package suggestion

import (
	"sort"

	"github.com/okian/oppsuggest/internal/domain/model"
)

// Defaults for the selector and the optional pre-filter.
const (
	DefaultMinScore          = 0.25
	DefaultMargin            = 0.1
	DefaultPrefilterMinScore = 0.5
)

// Outcome describes why the selector did or did not suggest.
type Outcome string

// Selector outcomes.
const (
	OutcomeSuggested      Outcome = "suggested"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeAmbiguous      Outcome = "ambiguous"
	OutcomeEmpty          Outcome = "empty"
)

// Decision is the selector verdict alongside the records.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Top     float64 `json:"top"`
	Second  float64 `json:"second"`
}

// Select sorts ranked by descending rank (stable) and, when the top rank
// clears minScore and leads the runner-up by at least margin, marks every
// record whose rank equals the top. Every other record is left unsuggested.
// Comparisons are exact; a tie at the top is only reachable with a zero margin. The input slice is
// reordered in place and returned; an empty input is returned unchanged.
func Select(ranked []model.RankedOpportunity, minScore, margin float64) []model.RankedOpportunity {
	out, _ := Decide(ranked, minScore, margin)
	return out
}

// Decide is Select plus the verdict.
func Decide(ranked []model.RankedOpportunity, minScore, margin float64) ([]model.RankedOpportunity, Decision) {
	if len(ranked) == 0 {
		return ranked, Decision{Outcome: OutcomeEmpty}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank > ranked[j].Rank })

	top := ranked[0].Rank
	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].Rank
	}

	d := Decision{Top: top, Second: second}
	switch {
	case top < minScore:
		d.Outcome = OutcomeBelowThreshold
	case top-second < margin:
		d.Outcome = OutcomeAmbiguous
	default:
		d.Outcome = OutcomeSuggested
	}

	for i := range ranked {
		ranked[i].Suggested = d.Outcome == OutcomeSuggested && ranked[i].Rank == top
	}
	return ranked, d
}

// Prefilter returns the records with rank >= minScore, preserving order.
func Prefilter(ranked []model.RankedOpportunity, minScore float64) []model.RankedOpportunity {
	out := make([]model.RankedOpportunity, 0, len(ranked))
	for _, r := range ranked {
		if r.Rank >= minScore {
			out = append(out, r)
		}
	}
	return out
}
