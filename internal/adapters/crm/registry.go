package crm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// PlatformRegistry holds the connectors built from configuration, keyed by
// their configuration name.
type PlatformRegistry struct {
	connectors map[string]Connector
}

// NewPlatformRegistry builds one connector per configured platform. An entry
// whose type has no registered factory fails the whole build.
func NewPlatformRegistry(platforms map[string]config.PlatformConfig, log logger.Logger) (*PlatformRegistry, error) {
	r := &PlatformRegistry{connectors: make(map[string]Connector, len(platforms))}
	for key, pc := range platforms {
		typ := pc.ConnectorType(key)
		factory, ok := GetFactory(typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s (type %q, registered %v)", ErrUnknownPlatform, key, typ, ListFactories())
		}
		conn, err := factory(key, pc, log.Named(key))
		if err != nil {
			return nil, fmt.Errorf("build connector %s: %w", key, err)
		}
		r.connectors[key] = Instrument(key, conn)
		log.Info(context.Background(), "crm connector ready",
			logger.String("platform", key),
			logger.String("type", typ),
			logger.String("stage_table", conn.StageTable()))
	}
	return r, nil
}

// NewStaticRegistry wraps prebuilt connectors, keyed by name.
func NewStaticRegistry(connectors map[string]Connector) *PlatformRegistry {
	r := &PlatformRegistry{connectors: make(map[string]Connector, len(connectors))}
	for k, c := range connectors {
		r.connectors[k] = c
	}
	return r
}

// Get returns the connector configured under name.
func (r *PlatformRegistry) Get(name string) (Connector, error) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return c, nil
}

// Platforms lists configured connector names in sorted order.
func (r *PlatformRegistry) Platforms() []string {
	out := make([]string, 0, len(r.connectors))
	for k := range r.connectors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of configured connectors.
func (r *PlatformRegistry) Len() int { return len(r.connectors) }

type instrumented struct {
	name string
	Connector
}

// Instrument records fetch latency and failures for conn under name.
func Instrument(name string, conn Connector) Connector {
	return &instrumented{name: name, Connector: conn}
}

func (i *instrumented) FetchOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	start := time.Now()
	opps, err := i.Connector.FetchOpportunities(ctx, accountID)
	metrics.RecordCRMFetch(i.name, "opportunities", float64(time.Since(start).Milliseconds()), err)
	return opps, err
}

func (i *instrumented) FetchLineItems(ctx context.Context, accountID string, f model.Filter) ([]model.LineItem, error) {
	start := time.Now()
	items, err := i.Connector.FetchLineItems(ctx, accountID, f)
	metrics.RecordCRMFetch(i.name, "line_items", float64(time.Since(start).Milliseconds()), err)
	return items, err
}
