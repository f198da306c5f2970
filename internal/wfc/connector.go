package wfc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EdgePattern is the three-value pattern a tile shows along one edge,
// read in a fixed winding direction.
type EdgePattern [3]int

// Reversed returns the pattern read from the other end of the edge
func (p EdgePattern) Reversed() EdgePattern {
	return EdgePattern{p[2], p[1], p[0]}
}

// Connector pairs a side with the edge pattern shown on it
type Connector struct {
	Side    Side        `yaml:"side"`
	Pattern EdgePattern `yaml:"pattern"`
}

// Rule associates a tile identifier with its connectors. When AllDirection
// is set, each connector is repeated on the three remaining sides with the
// same pattern.
type Rule struct {
	ID           int         `yaml:"id"`
	Connectors   []Connector `yaml:"connectors"`
	AllDirection bool        `yaml:"all_direction"`
}

// expand returns the rule's connectors plus their rotations if AllDirection is set
func (r Rule) expand() []Connector {
	out := make([]Connector, 0, len(r.Connectors)*sideCount)
	out = append(out, r.Connectors...)
	if !r.AllDirection {
		return out
	}
	for _, c := range r.Connectors {
		for n := 1; n < sideCount; n++ {
			out = append(out, Connector{Side: c.Side.Rotate(n), Pattern: c.Pattern})
		}
	}
	return out
}

// SideMode selects whether the compatibility test also compares sides
type SideMode int

const (
	// SideModeLiteral compares edge patterns only.
	SideModeLiteral SideMode = iota
	// SideModeOpposite also requires the connectors to face each other.
	SideModeOpposite
)

// String returns the string representation of a SideMode
func (m SideMode) String() string {
	switch m {
	case SideModeLiteral:
		return "literal"
	case SideModeOpposite:
		return "opposite"
	default:
		return "unknown"
	}
}

// ParseSideMode converts a name into a SideMode. The empty string is literal.
func ParseSideMode(s string) (SideMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return SideModeLiteral, nil
	case "opposite":
		return SideModeOpposite, nil
	default:
		return SideModeLiteral, fmt.Errorf("%w: %q", ErrInvalidSideMode, s)
	}
}

// UnmarshalYAML parses the side mode by name
func (m *SideMode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseSideMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAML writes the side mode by name
func (m SideMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Compatible reports whether two connectors can share an edge: the pattern
// of a read forwards must equal the pattern of b read backwards.
func (m SideMode) Compatible(a, b Connector) bool {
	if m == SideModeOpposite && a.Side != b.Side.Opposite() {
		return false
	}
	return a.Pattern == b.Pattern.Reversed()
}
