package wfc

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Side is one of the four edges of a grid cell
type Side int

const (
	Top Side = iota
	Right
	Bottom
	Left
)

// sideCount is the number of sides on a 4-connected grid
const sideCount = 4

// String returns the string representation of a Side
func (s Side) String() string {
	switch s {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Opposite returns the side facing this one across a shared edge
func (s Side) Opposite() Side {
	return s.Rotate(2)
}

// Rotate shifts the side clockwise by n steps.
func (s Side) Rotate(n int) Side {
	return Side(((int(s)+n)%sideCount + sideCount) % sideCount)
}

// Valid reports whether the side is one of Top, Right, Bottom, Left
func (s Side) Valid() bool {
	return s >= Top && s <= Left
}

// AllSides returns the four sides in propagation order
func AllSides() []Side {
	return []Side{Top, Right, Bottom, Left}
}

// ParseSide converts a side name or its numeric encoding into a Side
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top", "up", "north":
		return Top, nil
	case "right", "east":
		return Right, nil
	case "bottom", "down", "south":
		return Bottom, nil
	case "left", "west":
		return Left, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
	return Side(n), nil
}

// UnmarshalYAML accepts either a side name or an integer
func (s *Side) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseSide(value.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the side by name
func (s Side) MarshalYAML() (interface{}, error) {
	if !s.Valid() {
		return int(s), nil
	}
	return s.String(), nil
}

// offset returns the grid delta for a step in the given side's direction
func (s Side) offset() (dx, dy int) {
	switch s {
	case Top:
		return 0, -1
	case Right:
		return 1, 0
	case Bottom:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}
