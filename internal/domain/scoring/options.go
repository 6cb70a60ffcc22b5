package scoring

import "github.com/okian/oppsuggest/internal/domain/stage"

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithStageTable sets the default stage table.
func WithStageTable(t *stage.Table) Option {
	return func(s *WeightedScorer) {
		if t != nil {
			s.table = t
		}
	}
}

// LLMOption applies a configuration option to the LLMScorer.
type LLMOption func(*LLMScorer)

// WithSpeed selects the model speed tier.
func WithSpeed(speed Speed) LLMOption {
	return func(s *LLMScorer) {
		if speed != "" {
			s.speed = speed
		}
	}
}
