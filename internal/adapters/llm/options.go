package llm

import (
	"strings"
	"time"

	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Option applies a configuration option to the AnthropicChatter.
type Option func(*AnthropicChatter)

// WithModels overrides model ids per speed tier. Keys are tier names.
func WithModels(models map[string]string) Option {
	return func(c *AnthropicChatter) {
		for tier, model := range models {
			speed, err := scoring.ParseSpeed(tier)
			if err != nil || strings.TrimSpace(model) == "" {
				continue
			}
			c.models[speed] = strings.TrimSpace(model)
		}
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option {
	return func(c *AnthropicChatter) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds a single chat call.
func WithTimeout(d time.Duration) Option {
	return func(c *AnthropicChatter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *AnthropicChatter) {
		if l != nil {
			c.logger = l
		}
	}
}
