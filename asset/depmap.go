package asset

import "github.com/justapithecus/bale/types"

// DepMap is an insertion-ordered specifier → DependencyRecord map.
// Iteration order matches discovery order so emitted module tables are
// deterministic.
type DepMap struct {
	keys []string
	m    map[string]types.DependencyRecord
}

// NewDepMap returns an empty DepMap.
func NewDepMap() *DepMap {
	return &DepMap{m: make(map[string]types.DependencyRecord)}
}

// Add inserts or replaces the record for rec.Name. A replacement keeps the
// original position.
func (d *DepMap) Add(rec types.DependencyRecord) {
	if _, exists := d.m[rec.Name]; !exists {
		d.keys = append(d.keys, rec.Name)
	}
	d.m[rec.Name] = rec
}

// Get returns the record for a specifier.
func (d *DepMap) Get(name string) (types.DependencyRecord, bool) {
	rec, ok := d.m[name]
	return rec, ok
}

// Len returns the number of records.
func (d *DepMap) Len() int { return len(d.keys) }

// Keys returns the specifiers in insertion order.
func (d *DepMap) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Records returns the records in insertion order.
func (d *DepMap) Records() []types.DependencyRecord {
	out := make([]types.DependencyRecord, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, d.m[k])
	}
	return out
}
