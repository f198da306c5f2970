package wfc

import (
	"errors"
	"reflect"
	"testing"
)

// uniformRuleSet registers every id with a symmetric [1,1,1] edge on all
// sides, so every tile may sit next to every other tile.
func uniformRuleSet(ids ...int) *RuleSet {
	rs := NewRuleSet("uniform")
	for _, id := range ids {
		rs.AddConnector(Rule{
			ID:           id,
			Connectors:   []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}},
			AllDirection: true,
		})
	}
	return rs
}

// checkerRuleSet gives tile 0 the edge [1,1,2] and tile 1 the edge [2,1,1]
// on all sides, so each tile only fits next to the other.
func checkerRuleSet() *RuleSet {
	rs := NewRuleSet("checker")
	rs.AddConnector(Rule{ID: 0, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 2}}}, AllDirection: true})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{2, 1, 1}}}, AllDirection: true})
	return rs
}

func mustCompile(t *testing.T, rs *RuleSet) *LookupTable {
	t.Helper()
	table, err := rs.Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	return table
}

func TestSideModeCompatible(t *testing.T) {
	tests := []struct {
		name string
		mode SideMode
		a, b Connector
		want bool
	}{
		{"reversed match", SideModeLiteral, Connector{Top, EdgePattern{1, 2, 3}}, Connector{Bottom, EdgePattern{3, 2, 1}}, true},
		{"same order is not a match", SideModeLiteral, Connector{Top, EdgePattern{1, 2, 3}}, Connector{Bottom, EdgePattern{1, 2, 3}}, false},
		{"literal ignores sides", SideModeLiteral, Connector{Top, EdgePattern{1, 2, 3}}, Connector{Top, EdgePattern{3, 2, 1}}, true},
		{"opposite requires facing sides", SideModeOpposite, Connector{Top, EdgePattern{1, 2, 3}}, Connector{Top, EdgePattern{3, 2, 1}}, false},
		{"opposite accepts facing sides", SideModeOpposite, Connector{Left, EdgePattern{1, 2, 3}}, Connector{Right, EdgePattern{3, 2, 1}}, true},
		{"palindrome matches itself", SideModeLiteral, Connector{Top, EdgePattern{4, 5, 4}}, Connector{Left, EdgePattern{4, 5, 4}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.mode.Compatible(tc.a, tc.b); got != tc.want {
				t.Errorf("Compatible(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAddConnectorAllDirection(t *testing.T) {
	rs := NewRuleSet("test")
	rs.AddConnector(Rule{
		ID:           3,
		Connectors:   []Connector{{Side: Right, Pattern: EdgePattern{7, 8, 9}}},
		AllDirection: true,
	})

	got := rs.Connectors(3)
	want := []Connector{
		{Right, EdgePattern{7, 8, 9}},
		{Bottom, EdgePattern{7, 8, 9}},
		{Left, EdgePattern{7, 8, 9}},
		{Top, EdgePattern{7, 8, 9}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Connectors(3) = %v, want %v", got, want)
	}
}

func TestAddConnectorAppends(t *testing.T) {
	rs := NewRuleSet("test")
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}}})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Left, Pattern: EdgePattern{2, 2, 2}}}})

	if got := len(rs.Connectors(1)); got != 2 {
		t.Errorf("len(Connectors(1)) = %d, want 2", got)
	}
	if got := rs.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestIdentifiersSorted(t *testing.T) {
	rs := uniformRuleSet(9, 2, 40, 5)
	want := []int{2, 5, 9, 40}
	if got := rs.Identifiers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Identifiers() = %v, want %v", got, want)
	}
}

func TestCompileEmptyRuleSet(t *testing.T) {
	_, err := NewRuleSet("empty").Compile()
	if !errors.Is(err, ErrEmptyRuleSet) {
		t.Errorf("Compile() error = %v, want %v", err, ErrEmptyRuleSet)
	}
}

func TestCompileUniform(t *testing.T) {
	table := mustCompile(t, uniformRuleSet(0, 1, 2))

	for _, id := range []int{0, 1, 2} {
		for _, side := range AllSides() {
			got := table.Neighbours(id, side)
			if !reflect.DeepEqual(got, []int{0, 1, 2}) {
				t.Errorf("Neighbours(%d, %s) = %v, want [0 1 2]", id, side, got)
			}
		}
	}
}

func TestCompileChecker(t *testing.T) {
	table := mustCompile(t, checkerRuleSet())

	for _, side := range AllSides() {
		if got := table.Neighbours(0, side); !reflect.DeepEqual(got, []int{1}) {
			t.Errorf("Neighbours(0, %s) = %v, want [1]", side, got)
		}
		if got := table.Neighbours(1, side); !reflect.DeepEqual(got, []int{0}) {
			t.Errorf("Neighbours(1, %s) = %v, want [0]", side, got)
		}
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	rs := checkerRuleSet()
	rs.AddConnector(Rule{ID: 7, Connectors: []Connector{{Side: Left, Pattern: EdgePattern{1, 1, 2}}}})

	first := mustCompile(t, rs)
	second := mustCompile(t, rs)

	if !first.Equal(second) {
		t.Error("compiling unchanged rules twice produced different tables")
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Errorf("fingerprints differ: %s vs %s", first.Fingerprint(), second.Fingerprint())
	}
}

func TestCompiledTableIgnoresLaterRules(t *testing.T) {
	rs := uniformRuleSet(0, 1)
	table := mustCompile(t, rs)
	fp := rs.Fingerprint()

	rs.AddConnector(Rule{ID: 2, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}}, AllDirection: true})

	if got := table.Identifiers(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Identifiers() after adding a rule = %v, want [0 1]", got)
	}
	if rs.Fingerprint() == fp {
		t.Error("Fingerprint() did not change after adding a rule")
	}
	if table.Fingerprint() != fp {
		t.Error("table fingerprint changed after adding a rule")
	}
}

// In literal mode B may be allowed on A's top without A being allowed on B's
// bottom: here tile 1 declares no bottom connector at all.
func TestLookupAsymmetry(t *testing.T) {
	rs := NewRuleSet("asym")
	rs.AddConnector(Rule{ID: 0, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 2, 3}}}})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{3, 2, 1}}}})
	table := mustCompile(t, rs)

	if !table.Allows(0, Top, 1) {
		t.Error("expected 1 on top of 0")
	}
	if table.Allows(1, Bottom, 0) {
		t.Error("did not expect 0 below 1")
	}
	if !table.Allows(1, Top, 0) {
		t.Error("expected 0 on top of 1 in literal mode")
	}

	rs.SideMode = SideModeOpposite
	strict := mustCompile(t, rs)
	if got := strict.Neighbours(0, Top); len(got) != 0 {
		t.Errorf("opposite mode Neighbours(0, top) = %v, want none", got)
	}
}

func TestCompileSkipsInvalidSides(t *testing.T) {
	rs := NewRuleSet("bad")
	rs.AddConnector(Rule{ID: 0, Connectors: []Connector{{Side: Side(9), Pattern: EdgePattern{1, 1, 1}}}})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}}})
	table := mustCompile(t, rs)

	for _, side := range AllSides() {
		if got := table.Neighbours(0, side); len(got) != 0 {
			t.Errorf("Neighbours(0, %s) = %v, want none", side, got)
		}
	}
	// 1's top connector still matches 0's pattern
	if !table.Allows(1, Top, 0) {
		t.Error("expected 0 on top of 1")
	}
	if table.Neighbours(0, Side(9)) != nil {
		t.Error("Neighbours with invalid side should be nil")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := uniformRuleSet(3, 1)
	b := uniformRuleSet(1, 3)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("registration order of identifiers changed the fingerprint")
	}

	b.SideMode = SideModeOpposite
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("side mode did not change the fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("len(Fingerprint()) = %d, want 64", len(a.Fingerprint()))
	}
}
