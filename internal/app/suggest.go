package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/lookup"
	"github.com/okian/oppsuggest/internal/adapters/mq/queue"
	"github.com/okian/oppsuggest/internal/adapters/mq/worker"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// batch is everything the shared ranking step needs.
type batch struct {
	transcript string
	userIDs    []string
	opps       []model.Opportunity
	items      map[string][]model.LineItem
	products   []model.Product
	table      *stage.Table
	strategy   string
	policy     suggestion.Policy
	platform   string
}

// Suggest resolves the representative, fetches the account's opportunities
// from the selected CRM and returns them ranked, with the confident top suggested.
func (s *Service) Suggest(ctx context.Context, req SuggestionRequest, o Overrides) (*Response, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	s.stats.requests.Add(1)
	reqID := RequestID(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.suggest(ctx, reqID, req, o)
	if err != nil {
		s.stats.failures.Add(1)
		metrics.RecordRanking(platformOr(o.Platform, s.defaultPlatform), strategyOr(o.Strategy, s.strategy), "error")
		s.logger.Warn(ctx, "suggestion failed",
			logger.String("request_id", reqID),
			logger.String("account_id", req.AccountID),
			logger.Error(err))
		return nil, err
	}
	return resp, nil
}

func (s *Service) suggest(ctx context.Context, reqID string, req SuggestionRequest, o Overrides) (*Response, error) {
	if missing := req.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	policy, strategy, err := s.resolve(o)
	if err != nil {
		return nil, err
	}

	platform := platformOr(o.Platform, s.defaultPlatform)
	conn, err := s.platforms.Get(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownPlatform, err)
	}
	if s.lookup == nil {
		return nil, fmt.Errorf("%w: no lookup store configured", ErrUserNotFound)
	}

	user, err := s.lookup.UserByEmail(ctx, req.Email)
	if errors.Is(err, lookup.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: sales representative with email %s not found", ErrUserNotFound, req.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	userIDs := []string{user.ID}

	products, err := s.lookup.UserProducts(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	opps, err := conn.FetchOpportunities(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	var items []model.LineItem
	if strategy == scoring.StrategyDeterministic && len(opps) > 0 {
		items, err = conn.FetchLineItems(ctx, req.AccountID, model.Filter{OwnerIDs: userIDs, ProductIDs: req.ProductIDs})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}

	table, err := s.stages.Get(conn.StageTable())
	if err != nil {
		s.logger.Warn(ctx, "stage table missing, using general",
			logger.String("platform", platform), logger.String("table", conn.StageTable()))
		table = stage.NewGeneralTable()
	}

	s.logger.Debug(ctx, "suggestion inputs",
		logger.String("request_id", reqID),
		logger.String("user_id", user.ID),
		logger.String("account_id", req.AccountID),
		logger.Int("opportunities", len(opps)),
		logger.Int("line_items", len(items)),
		logger.Int("products", len(products)))

	return s.rank(ctx, reqID, batch{
		transcript: req.Transcript,
		userIDs:    userIDs,
		opps:       opps,
		items:      model.GroupLineItems(items),
		products:   products,
		table:      table,
		strategy:   strategy,
		policy:     policy,
		platform:   platform,
	})
}

// Rank scores caller-supplied opportunities without touching a CRM or the
// lookup store.
func (s *Service) Rank(ctx context.Context, req RankRequest, o Overrides) (*Response, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	s.stats.requests.Add(1)
	reqID := RequestID(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.rankInline(ctx, reqID, req, o)
	if err != nil {
		s.stats.failures.Add(1)
		metrics.RecordRanking("inline", strategyOr(o.Strategy, s.strategy), "error")
		return nil, err
	}
	return resp, nil
}

func (s *Service) rankInline(ctx context.Context, reqID string, req RankRequest, o Overrides) (*Response, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: missing required fields: transcript", ErrInvalidRequest)
	}
	for i, opp := range req.Opportunities {
		if opp.ID == "" {
			return nil, fmt.Errorf("%w: opportunity %d has no id", ErrInvalidRequest, i)
		}
	}
	policy, strategy, err := s.resolve(o)
	if err != nil {
		return nil, err
	}
	tableName := req.StageTable
	if tableName == "" {
		tableName = stage.General
	}
	table, err := s.stages.Get(tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return s.rank(ctx, reqID, batch{
		transcript: req.Transcript,
		userIDs:    req.UserIDs,
		opps:       req.Opportunities,
		items:      model.GroupLineItems(req.LineItems),
		products:   req.Products,
		table:      table,
		strategy:   strategy,
		policy:     policy,
		platform:   "inline",
	})
}

// resolve merges overrides with the service defaults and validates them.
func (s *Service) resolve(o Overrides) (suggestion.Policy, string, error) {
	policy := o.policy(s.policy)
	if err := policy.Validate(); err != nil {
		return policy, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	strategy := strategyOr(o.Strategy, s.strategy)
	supported := false
	for _, st := range s.Strategies() {
		if st == strategy {
			supported = true
			break
		}
	}
	if !supported {
		return policy, "", fmt.Errorf("%w: unsupported strategy %q", ErrInvalidRequest, strategy)
	}
	return policy, strategy, nil
}

// rank scores the batch on the worker pool and applies the policy.
func (s *Service) rank(ctx context.Context, reqID string, b batch) (*Response, error) {
	start := time.Now()

	inputs := make([]scoring.Input, len(b.opps))
	for i, opp := range b.opps {
		inputs[i] = scoring.Input{
			Opportunity: opp,
			LineItems:   b.items[opp.ID],
			Transcript:  b.transcript,
			UserIDs:     b.userIDs,
			Table:       b.table,
			Products:    b.products,
		}
	}

	results, err := s.pool.Dispatch(ctx, b.strategy, inputs)
	switch {
	case errors.Is(err, queue.ErrFull):
		return nil, fmt.Errorf("%w: %w", ErrBackpressure, err)
	case errors.Is(err, queue.ErrClosed), errors.Is(err, worker.ErrStopped):
		return nil, fmt.Errorf("%w: %w", ErrNotStarted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: scoring timed out: %w", ErrUpstream, err)
	case err != nil && b.strategy == scoring.StrategyLLM:
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	case err != nil:
		return nil, fmt.Errorf("scoring: %w", err)
	}

	ranked := make([]model.RankedOpportunity, len(results))
	for i, r := range results {
		ranked[i] = model.NewRanked(b.opps[i], r.Score)
		if r.Breakdown != nil {
			s.logger.Debug(ctx, "opportunity scored",
				logger.String("request_id", reqID),
				logger.String("opportunity_id", r.OpportunityID),
				logger.Float64("score", r.Score),
				logger.Float64("product_match", r.Breakdown.ProductMatch),
				logger.Float64("stage_weight", r.Breakdown.StageWeight),
				logger.Float64("owner_match", r.Breakdown.OwnerMatch),
				logger.Bool("has_products", r.Breakdown.HasProducts))
		}
	}

	out, decision, dropped := b.policy.Apply(ranked)
	if out == nil {
		out = []model.RankedOpportunity{}
	}

	metrics.RecordPrefilterDropped(dropped)
	metrics.RecordSuggestionOutcome(string(decision.Outcome))
	metrics.RecordRanking(b.platform, b.strategy, "ok")
	if decision.Outcome == suggestion.OutcomeSuggested {
		s.stats.suggested.Add(1)
	}

	s.logger.Info(ctx, "opportunities ranked",
		logger.String("request_id", reqID),
		logger.String("platform", b.platform),
		logger.String("strategy", b.strategy),
		logger.Int("candidates", len(ranked)),
		logger.Int("dropped", dropped),
		logger.String("outcome", string(decision.Outcome)),
		logger.Float64("top", decision.Top),
		logger.Float64("second", decision.Second),
		logger.Duration("took", time.Since(start)))

	return &Response{
		Result: out,
		Metadata: Metadata{
			Policy:     b.policy,
			Platform:   b.platform,
			Strategy:   b.strategy,
			StageTable: b.table.Name(),
			RequestID:  reqID,
			Outcome:    decision.Outcome,
			Dropped:    dropped,
			Candidates: len(ranked),
		},
	}, nil
}

func platformOr(p, def string) string {
	if p = strings.TrimSpace(p); p != "" {
		return p
	}
	return def
}

func strategyOr(st, def string) string {
	if st = strings.ToLower(strings.TrimSpace(st)); st != "" {
		return st
	}
	return def
}
