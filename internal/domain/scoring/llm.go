package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnparsableScore is returned when a model reply is neither a JSON score
// object nor a bare decimal.
var ErrUnparsableScore = errors.New("unparsable llm score")

// Speed selects a model tier.
type Speed string

// Speed tiers.
const (
	SpeedSlow   Speed = "slow"
	SpeedMedium Speed = "medium"
	SpeedFast   Speed = "fast"
)

// ParseSpeed maps a case-insensitive tier name to a Speed.
func ParseSpeed(s string) (Speed, error) {
	switch Speed(strings.ToLower(strings.TrimSpace(s))) {
	case SpeedSlow:
		return SpeedSlow, nil
	case SpeedMedium:
		return SpeedMedium, nil
	case SpeedFast, "":
		return SpeedFast, nil
	default:
		return "", fmt.Errorf("unknown speed tier %q", s)
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter is a text-completion capability.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, systemPrompt string, speed Speed) (string, error)
}

const llmInstruction = "You are a senior software engineer. Given the following opportunity, rank it based on the products that are being discussed here: %s."

const llmSystemPrompt = `These are the products that the sales representative is selling:
%s

Return the opportunity with a score between 0 and 1. A score closer to 1 means the opportunity is more likely to be the one being discussed.
Reply with a JSON object only, no markdown, with this structure:

{"id": "the opportunity id", "name": "the opportunity name", "score": 0.0}

If the opportunity is not related to the products being discussed, set the score to 0.

The opportunity record from the CRM:
%s`

// LLMScorer implements Scorer by asking a language model.
type LLMScorer struct {
	chat  Chatter
	speed Speed
}

// NewLLMScorer wraps a Chatter. The fast tier is used by default.
func NewLLMScorer(chat Chatter, opts ...LLMOption) *LLMScorer {
	s := &LLMScorer{chat: chat, speed: SpeedFast}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score asks the model for a score. Replies that cannot be parsed fail with
// ErrUnparsableScore.
func (s *LLMScorer) Score(ctx context.Context, in Input) (Result, error) {
	if s.chat == nil {
		return Result{}, errors.New("llm scorer has no chat client")
	}
	record, err := json.Marshal(in.Opportunity)
	if err != nil {
		return Result{}, fmt.Errorf("encode opportunity: %w", err)
	}
	products, err := json.Marshal(in.Products)
	if err != nil {
		return Result{}, fmt.Errorf("encode products: %w", err)
	}

	messages := []Message{{Role: "user", Content: fmt.Sprintf(llmInstruction, in.Transcript)}}
	reply, err := s.chat.Chat(ctx, messages, fmt.Sprintf(llmSystemPrompt, products, record), s.speed)
	if err != nil {
		return Result{}, fmt.Errorf("llm chat: %w", err)
	}

	score, err := ParseScore(reply)
	if err != nil {
		return Result{}, fmt.Errorf("opportunity %s: %w", in.Opportunity.ID, err)
	}
	return Result{
		OpportunityID: in.Opportunity.ID,
		Score:         score,
		Strategy:      StrategyLLM,
	}, nil
}

type llmReply struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Score json.RawMessage `json:"score"`
}

// ParseScore reads a model reply as {id,name,score} JSON or a bare decimal.
// The score may be a JSON number or a numeric string. The result is clamped to [0,1].
func ParseScore(reply string) (float64, error) {
	text := stripCodeFences(strings.TrimSpace(reply))
	if text == "" {
		return 0, fmt.Errorf("%w: empty reply", ErrUnparsableScore)
	}

	if strings.HasPrefix(text, "{") {
		var r llmReply
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnparsableScore, err)
		}
		if len(r.Score) == 0 || string(r.Score) == "null" {
			return 0, fmt.Errorf("%w: missing score", ErrUnparsableScore)
		}
		raw := strings.Trim(string(r.Score), `"`)
		return parseDecimal(raw)
	}
	return parseDecimal(text)
}

func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableScore, s)
	}
	return clamp01(v), nil
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
