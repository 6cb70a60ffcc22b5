// Package crm defines the connector contract for CRM platforms and the
// registries that build connectors from configuration.
//
// Platform packages register a Factory from init; importing a platform
// package for side effects makes it available to NewPlatformRegistry.
package crm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Connector fetches opportunity snapshots for one CRM platform.
type Connector interface {
	// Platform returns the connector type tag, e.g. "salesforce".
	Platform() string
	// StageTable names the stage weight table scoring should use.
	StageTable() string
	// FetchOpportunities returns every opportunity of the account.
	FetchOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error)
	// FetchLineItems returns product lines for the account's opportunities,
	// narrowed by owner and product. Platforms without line items return nil.
	FetchLineItems(ctx context.Context, accountID string, f model.Filter) ([]model.LineItem, error)
}

// Factory builds a Connector from one platform entry. key is the entry's
// name in configuration.
type Factory func(key string, cfg config.PlatformConfig, log logger.Logger) (Connector, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a connector type available. It panics on a nil factory and
// replaces an earlier registration of the same type.
func Register(platform string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("crm: nil factory for platform %q", platform))
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[platform] = factory
}

// GetFactory returns the factory registered for platform.
func GetFactory(platform string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[platform]
	return f, ok
}

// ListFactories returns registered connector types in sorted order.
func ListFactories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for p := range factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
