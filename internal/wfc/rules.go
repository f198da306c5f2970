package wfc

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// RuleSet collects tile rules before they are compiled into a LookupTable.
// It is not safe for concurrent use.
type RuleSet struct {
	Name     string
	SideMode SideMode

	connectors map[int][]Connector
}

// NewRuleSet creates an empty rule set
func NewRuleSet(name string) *RuleSet {
	return &RuleSet{
		Name:       name,
		SideMode:   SideModeLiteral,
		connectors: make(map[int][]Connector),
	}
}

// AddConnector registers a rule, appending its connectors (and their
// rotations when AllDirection is set) to the identifier's connector list.
// Sides and patterns are not validated here.
func (rs *RuleSet) AddConnector(rule Rule) {
	if rs.connectors == nil {
		rs.connectors = make(map[int][]Connector)
	}
	rs.connectors[rule.ID] = append(rs.connectors[rule.ID], rule.expand()...)
}

// Identifiers returns every registered tile identifier in ascending order
func (rs *RuleSet) Identifiers() []int {
	ids := make([]int, 0, len(rs.connectors))
	for id := range rs.connectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Connectors returns a copy of the connectors registered for id
func (rs *RuleSet) Connectors(id int) []Connector {
	return append([]Connector(nil), rs.connectors[id]...)
}

// Len returns the number of registered tile identifiers
func (rs *RuleSet) Len() int {
	return len(rs.connectors)
}

// Fingerprint returns a hex BLAKE2b-256 digest of the side mode, identifiers
// and connectors. Two rule sets with the same fingerprint compile to the
// same table.
func (rs *RuleSet) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	put := func(v int) {
		binary.BigEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}

	put(int(rs.SideMode))
	for _, id := range rs.Identifiers() {
		conns := rs.connectors[id]
		put(id)
		put(len(conns))
		for _, c := range conns {
			put(int(c.Side))
			for _, v := range c.Pattern {
				put(v)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile tests every ordered pair of connectors across all identifiers and
// builds the table of legal neighbours. Connectors whose side is out of range
// contribute nothing. The returned table does not change if the rule set is
// modified afterwards.
func (rs *RuleSet) Compile() (*LookupTable, error) {
	if rs.Len() == 0 {
		return nil, ErrEmptyRuleSet
	}

	ids := rs.Identifiers()
	table := newLookupTable(ids, rs.Name, rs.Fingerprint())

	for _, a := range ids {
		for _, ca := range rs.connectors[a] {
			if !ca.Side.Valid() {
				continue
			}
			for _, b := range ids {
				for _, cb := range rs.connectors[b] {
					if rs.SideMode.Compatible(ca, cb) {
						table.add(a, ca.Side, b)
					}
				}
			}
		}
	}

	table.seal()
	return table, nil
}
