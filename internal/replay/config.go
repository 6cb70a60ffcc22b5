// Package replay posts ranking fixtures to a running server concurrently and
// checks each response against the fixture's expected suggestion.
package replay

import (
	"time"

	service "github.com/okian/oppsuggest/internal/app"
	"github.com/okian/oppsuggest/internal/domain/model"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Dir        string        // Directory of *.json fixtures
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	SkipHealth bool          // Skip the /healthz check
	Verbose    bool          // Log every fixture outcome
}

// Fixture is one recorded ranking request and its expected suggestion.
// A nil ExpectSuggested skips the check; an empty string expects no suggestion.
type Fixture struct {
	Name            string              `json:"name"`
	Data            service.RankRequest `json:"data"`
	Config          service.Overrides   `json:"config"`
	ExpectSuggested *string             `json:"expect_suggested,omitempty"`

	// file the fixture was read from
	source string
}

// rankBody mirrors the POST /rank request body.
type rankBody struct {
	Data   service.RankRequest `json:"data"`
	Config service.Overrides   `json:"config"`
}

// rankReply is the subset of the response envelope replay reads.
type rankReply struct {
	Result   []model.RankedOpportunity `json:"result"`
	Error    *string                   `json:"error"`
	Metadata struct {
		RequestID string `json:"requestId"`
		Outcome   string `json:"outcome"`
	} `json:"metadata"`
}

// Outcome is the verdict for one fixture.
type Outcome struct {
	Fixture   string
	RequestID string
	Status    int
	Suggested string
	Expected  *string
	Passed    bool
	Err       error
	Latency   time.Duration
}

// Stats holds run statistics.
type Stats struct {
	Fixtures   int
	Submitted  int
	Passed     int
	Mismatched int
	Failed     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// Report is the result of a replay run.
type Report struct {
	Outcomes []Outcome
	Stats    Stats
}
