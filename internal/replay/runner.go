package replay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/okian/oppsuggest/pkg/logger"
)

// Run replays every fixture in cfg.Dir against cfg.BaseURL. It returns the
// report together with ErrMismatch when any fixture failed or disagreed.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("replay")
	report := &Report{Stats: Stats{StartTime: time.Now()}}

	fixtures, err := LoadFixtures(cfg.Dir)
	if err != nil {
		return nil, err
	}
	report.Stats.Fixtures = len(fixtures)

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("dir", cfg.Dir),
		logger.Int("fixtures", len(fixtures)),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newHTTPClient(cfg.Timeout)
	base := strings.TrimRight(cfg.BaseURL, "/")

	if !cfg.SkipHealth {
		if err := checkServiceHealth(ctx, client, base); err != nil {
			return nil, err
		}
	}

	report.Outcomes = submitFixtures(ctx, cfg, client, base+"/rank", fixtures)
	verify(report)

	report.Stats.EndTime = time.Now()
	report.Stats.Duration = report.Stats.EndTime.Sub(report.Stats.StartTime)

	for _, o := range report.Outcomes {
		switch {
		case o.Err != nil:
			log.Warn(ctx, "fixture failed",
				logger.String("fixture", o.Fixture),
				logger.String("requestId", o.RequestID),
				logger.Error(o.Err))
		case !o.Passed:
			log.Warn(ctx, "fixture mismatch",
				logger.String("fixture", o.Fixture),
				logger.String("requestId", o.RequestID),
				logger.String("expected", *o.Expected),
				logger.String("suggested", o.Suggested))
		case cfg.Verbose:
			log.Info(ctx, "fixture passed",
				logger.String("fixture", o.Fixture),
				logger.String("suggested", o.Suggested),
				logger.Duration("latency", o.Latency))
		}
	}

	s := report.Stats
	log.Info(ctx, "replay finished",
		logger.Int("fixtures", s.Fixtures),
		logger.Int("passed", s.Passed),
		logger.Int("mismatched", s.Mismatched),
		logger.Int("failed", s.Failed),
		logger.Duration("duration", s.Duration))

	if s.Mismatched > 0 || s.Failed > 0 {
		return report, fmt.Errorf("%w: %d mismatched, %d failed", ErrMismatch, s.Mismatched, s.Failed)
	}
	return report, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient, base string) error {
	resp, err := client.Get(ctx, base+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// submitFixtures fans fixtures out to cfg.Workers goroutines. Outcomes keep
// fixture order.
func submitFixtures(ctx context.Context, cfg *Config, client *HTTPClient, url string, fixtures []Fixture) []Outcome {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(fixtures))
	indexes := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					outcomes[i] = Outcome{Fixture: fixtures[i].Name, Expected: fixtures[i].ExpectSuggested, Err: err}
					continue
				}
				outcomes[i] = submitFixture(ctx, client, url, fixtures[i])
			}
		}()
	}

	for i := range fixtures {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return outcomes
}

// verify marks outcomes and fills the counters.
func verify(r *Report) {
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		if o.Status != 0 {
			r.Stats.Submitted++
		}
		switch {
		case o.Err != nil:
			r.Stats.Failed++
		case o.Expected == nil || *o.Expected == o.Suggested:
			o.Passed = true
			r.Stats.Passed++
		default:
			r.Stats.Mismatched++
		}
	}
}
