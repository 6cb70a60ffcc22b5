package suggestion

import (
	"fmt"

	"github.com/okian/oppsuggest/internal/domain/model"
)

// Policy bundles the selector thresholds with the caller pre-filter.
// The pre-filter is separate from the selector's own minimum score: some
// deployments drop weak candidates before selection, others do not.
type Policy struct {
	MinScore          float64 `json:"minScoreThreshold"`
	Margin            float64 `json:"scoreDifferenceThreshold"`
	PrefilterEnabled  bool    `json:"prefilterEnabled"`
	PrefilterMinScore float64 `json:"prefilterMinScore"`
}

// DefaultPolicy returns the selector defaults with the pre-filter off.
func DefaultPolicy() Policy {
	return Policy{
		MinScore:          DefaultMinScore,
		Margin:            DefaultMargin,
		PrefilterMinScore: DefaultPrefilterMinScore,
	}
}

// Validate checks that every threshold lies in [0,1].
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"min score":           p.MinScore,
		"margin":              p.Margin,
		"prefilter min score": p.PrefilterMinScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %v outside [0,1]", name, v)
		}
	}
	return nil
}

// Apply runs the optional pre-filter and then the selector. It reports how
// many records the pre-filter dropped.
func (p Policy) Apply(ranked []model.RankedOpportunity) ([]model.RankedOpportunity, Decision, int) {
	dropped := 0
	if p.PrefilterEnabled {
		kept := Prefilter(ranked, p.PrefilterMinScore)
		dropped = len(ranked) - len(kept)
		ranked = kept
	}
	out, d := Decide(ranked, p.MinScore, p.Margin)
	return out, d, dropped
}
