// Package stage maps CRM pipeline stage labels to prior weights.
//
// Stage vocabularies differ per CRM, so weights live in data: a Table holds a
// label mapping plus the default used for unknown labels. Lookups are
// case-insensitive and ignore surrounding whitespace.
package stage

import (
	"sort"
	"strconv"
	"strings"
)

// Table is an immutable stage label -> weight mapping with a default.
type Table struct {
	name    string
	weights map[string]float64
	def     float64
}

// NewTable builds a table. Keys are normalized and weights clamped to [0,1].
// When two keys normalize to the same label, the one sorting last wins.
func NewTable(name string, weights map[string]float64, defaultWeight float64) *Table {
	t := &Table{
		name:    strings.ToLower(strings.TrimSpace(name)),
		weights: make(map[string]float64, len(weights)),
		def:     clamp(defaultWeight),
	}
	for _, label := range sortedKeys(weights) {
		t.weights[normalize(label)] = clamp(weights[label])
	}
	return t
}

// Name returns the table tag, e.g. "salesforce".
func (t *Table) Name() string { return t.name }

// Default returns the weight used for unknown labels.
func (t *Table) Default() float64 { return t.def }

// Len returns the number of known labels.
func (t *Table) Len() int { return len(t.weights) }

// Weight returns the weight of label, or the table default when unknown.
func (t *Table) Weight(label string) float64 {
	if w, ok := t.weights[normalize(label)]; ok {
		return w
	}
	return t.def
}

// WeightCode looks up an integer-coded stage.
func (t *Table) WeightCode(code int) float64 {
	return t.Weight(strconv.Itoa(code))
}

// Labels returns the normalized labels in sorted order.
func (t *Table) Labels() []string {
	out := make([]string, 0, len(t.weights))
	for k := range t.weights {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of t with overrides applied and, if def is non-nil, a new default.
func (t *Table) With(overrides map[string]float64, def *float64) *Table {
	merged := make(map[string]float64, len(t.weights)+len(overrides))
	for k, v := range t.weights {
		merged[k] = v
	}
	for _, k := range sortedKeys(overrides) {
		merged[normalize(k)] = overrides[k]
	}
	d := t.def
	if def != nil {
		d = *def
	}
	return NewTable(t.name, merged, d)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
