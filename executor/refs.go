package executor

import (
	"maps"
	"slices"
	"strings"
)

// ReferenceSet is the set of library identifiers made visible to compiled
// code. It is not safe for concurrent use; a Session guards its own copy.
type ReferenceSet struct {
	ids map[string]struct{}
}

// NewReferenceSet returns a set holding ids. Blank ids are ignored.
func NewReferenceSet(ids ...string) *ReferenceSet {
	r := &ReferenceSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.Add(id)
	}
	return r
}

// Add inserts id and reports whether it was new.
func (r *ReferenceSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (r *ReferenceSet) Remove(id string) bool {
	id = strings.TrimSpace(id)
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	return true
}

func (r *ReferenceSet) Has(id string) bool {
	_, ok := r.ids[strings.TrimSpace(id)]
	return ok
}

// IDs returns the identifiers in sorted order.
func (r *ReferenceSet) IDs() []string {
	return slices.Sorted(maps.Keys(r.ids))
}

func (r *ReferenceSet) Len() int { return len(r.ids) }

func (r *ReferenceSet) Clone() *ReferenceSet {
	return &ReferenceSet{ids: maps.Clone(r.ids)}
}
