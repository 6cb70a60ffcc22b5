// Package llm implements the chat capability used by the LLM ranking
// strategy on top of the Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// Sentinel errors.
var (
	ErrNoAPIKey      = errors.New("anthropic api key not configured")
	ErrEmptyResponse = errors.New("empty llm response")
)

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 30 * time.Second
)

// DefaultModels maps speed tiers to model ids.
func DefaultModels() map[scoring.Speed]string {
	return map[scoring.Speed]string{
		scoring.SpeedSlow:   "claude-opus-4-20250514",
		scoring.SpeedMedium: "claude-sonnet-4-20250514",
		scoring.SpeedFast:   "claude-3-5-haiku-latest",
	}
}

// AnthropicMessager is the slice of the SDK client we call.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClientCreator builds a messager for an api key.
type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicChatter implements scoring.Chatter.
type AnthropicChatter struct {
	messages  AnthropicMessager
	models    map[scoring.Speed]string
	maxTokens int64
	timeout   time.Duration
	logger    logger.Logger
}

// NewAnthropicChatter creates a chatter for apiKey.
func NewAnthropicChatter(apiKey string, opts ...Option) (*AnthropicChatter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &AnthropicChatter{
		messages:  newAnthropicClient(apiKey),
		models:    DefaultModels(),
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the model id configured for speed.
func (c *AnthropicChatter) Model(speed scoring.Speed) string {
	if m, ok := c.models[speed]; ok && m != "" {
		return m
	}
	return c.models[scoring.SpeedFast]
}

// Chat sends messages with systemPrompt to the model for speed and returns the text reply.
func (c *AnthropicChatter) Chat(ctx context.Context, messages []scoring.Message, systemPrompt string, speed scoring.Speed) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.Model(speed)),
		MaxTokens:   c.maxTokens,
		Messages:    toParams(messages),
		Temperature: anthropic.Float(0),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	start := time.Now()
	resp, err := c.messages.New(ctx, params)
	if err != nil {
		metrics.RecordLLMRequest(string(speed), "error")
		c.logger.Warn(ctx, "llm request failed",
			logger.String("model", string(params.Model)),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		metrics.RecordLLMRequest(string(speed), "empty")
		return "", ErrEmptyResponse
	}
	metrics.RecordLLMRequest(string(speed), "ok")
	c.logger.Debug(ctx, "llm reply",
		logger.String("model", string(params.Model)),
		logger.Duration("took", time.Since(start)),
		logger.Int("chars", len(text)),
	)
	return text, nil
}

func toParams(messages []scoring.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if strings.EqualFold(m.Role, "assistant") {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
