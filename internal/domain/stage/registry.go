package stage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownTable is returned when no table is registered under a tag.
var ErrUnknownTable = errors.New("unknown stage table")

// Registry resolves stage tables by tag. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns a registry preloaded with the built-in tables.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[string]*Table)}
	for _, t := range []*Table{NewGeneralTable(), NewSalesforceTable(), NewPivotalTable(), NewACRMTable()} {
		r.tables[t.Name()] = t
	}
	return r
}

// Register adds or replaces a table under its own name.
func (r *Registry) Register(t *Table) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Name()] = t
}

// Override merges weights into the table named name, creating it from an
// empty mapping when it does not exist yet. A nil def keeps the old default
// (0.5 for new tables).
func (r *Registry) Override(name string, weights map[string]float64, def *float64) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	base, ok := r.tables[key]
	if !ok {
		base = NewTable(key, nil, 0.5)
	}
	r.tables[key] = base.With(weights, def)
}

// Get returns the table registered under name.
func (r *Registry) Get(name string) (*Table, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// Names lists registered tags in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for k := range r.tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
