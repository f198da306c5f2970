package wfc

import "sort"

// idSet is a set of tile identifiers
type idSet map[int]struct{}

// sideEntry holds the legal neighbours of one identifier on each side
type sideEntry struct {
	sets  [sideCount]idSet
	lists [sideCount][]int
}

// LookupTable maps each tile identifier to the identifiers that may occupy
// the neighbouring cell on each side. It is immutable once compiled and may
// be shared between goroutines.
type LookupTable struct {
	name        string
	fingerprint string
	ids         []int
	entries     map[int]*sideEntry
}

func newLookupTable(ids []int, name, fingerprint string) *LookupTable {
	t := &LookupTable{
		name:        name,
		fingerprint: fingerprint,
		ids:         append([]int(nil), ids...),
		entries:     make(map[int]*sideEntry, len(ids)),
	}
	for _, id := range ids {
		e := &sideEntry{}
		for s := range e.sets {
			e.sets[s] = make(idSet)
		}
		t.entries[id] = e
	}
	return t
}

func (t *LookupTable) add(id int, side Side, neighbour int) {
	t.entries[id].sets[side][neighbour] = struct{}{}
}

// seal freezes each set into a sorted list for stable iteration
func (t *LookupTable) seal() {
	for _, e := range t.entries {
		for s, set := range e.sets {
			list := make([]int, 0, len(set))
			for id := range set {
				list = append(list, id)
			}
			sort.Ints(list)
			e.lists[s] = list
		}
	}
}

// Name returns the name of the rule set the table was compiled from
func (t *LookupTable) Name() string {
	return t.name
}

// Fingerprint returns the fingerprint of the rule set at compile time
func (t *LookupTable) Fingerprint() string {
	return t.fingerprint
}

// Identifiers returns the known tile identifiers in ascending order
func (t *LookupTable) Identifiers() []int {
	return append([]int(nil), t.ids...)
}

// Neighbours returns the identifiers allowed next to id on the given side,
// in ascending order. Unknown identifiers and invalid sides yield nil.
func (t *LookupTable) Neighbours(id int, side Side) []int {
	e, ok := t.entries[id]
	if !ok || !side.Valid() {
		return nil
	}
	return append([]int(nil), e.lists[side]...)
}

// Allows reports whether neighbour may sit on the given side of id
func (t *LookupTable) Allows(id int, side Side, neighbour int) bool {
	e, ok := t.entries[id]
	if !ok || !side.Valid() {
		return false
	}
	_, ok = e.sets[side][neighbour]
	return ok
}

// Equal reports whether two tables hold the same identifiers and neighbours
func (t *LookupTable) Equal(other *LookupTable) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.ids) != len(other.ids) {
		return false
	}
	for i, id := range t.ids {
		if other.ids[i] != id {
			return false
		}
		a, b := t.entries[id], other.entries[id]
		for s := 0; s < sideCount; s++ {
			if len(a.lists[s]) != len(b.lists[s]) {
				return false
			}
			for j := range a.lists[s] {
				if a.lists[s][j] != b.lists[s][j] {
					return false
				}
			}
		}
	}
	return true
}

// allowedSet returns the internal membership set for id and side, or nil
func (t *LookupTable) allowedSet(id int, side Side) idSet {
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	return e.sets[side]
}
