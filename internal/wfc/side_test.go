package wfc

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSideString(t *testing.T) {
	tests := []struct {
		s    Side
		want string
	}{
		{Top, "top"},
		{Right, "right"},
		{Bottom, "bottom"},
		{Left, "left"},
		{Side(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Side(%d).String() = %q, want %q", tc.s, got, tc.want)
		}
	}
}

func TestSideOpposite(t *testing.T) {
	tests := []struct {
		s    Side
		want Side
	}{
		{Top, Bottom},
		{Bottom, Top},
		{Right, Left},
		{Left, Right},
	}

	for _, tc := range tests {
		if got := tc.s.Opposite(); got != tc.want {
			t.Errorf("%s.Opposite() = %s, want %s", tc.s, got, tc.want)
		}
	}
}

func TestSideRotate(t *testing.T) {
	tests := []struct {
		s    Side
		n    int
		want Side
	}{
		{Top, 1, Right},
		{Top, 3, Left},
		{Left, 1, Top},
		{Bottom, 4, Bottom},
		{Right, -1, Top},
	}

	for _, tc := range tests {
		if got := tc.s.Rotate(tc.n); got != tc.want {
			t.Errorf("%s.Rotate(%d) = %s, want %s", tc.s, tc.n, got, tc.want)
		}
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"top", Top, false},
		{"RIGHT", Right, false},
		{"south", Bottom, false},
		{"west", Left, false},
		{"2", Bottom, false},
		{"7", Side(7), false}, // out of range passes through unvalidated
		{"diagonal", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseSide(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSide(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseSide(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSideYAMLRoundTrip(t *testing.T) {
	var c Connector
	if err := yaml.Unmarshal([]byte("side: left\npattern: [1, 2, 3]\n"), &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c.Side != Left {
		t.Errorf("Side = %s, want left", c.Side)
	}
	if c.Pattern != (EdgePattern{1, 2, 3}) {
		t.Errorf("Pattern = %v, want [1 2 3]", c.Pattern)
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Connector
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal of marshalled connector failed: %v", err)
	}
	if back != c {
		t.Errorf("round trip = %+v, want %+v", back, c)
	}
}
