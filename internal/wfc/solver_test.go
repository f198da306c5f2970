package wfc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"reflect"
	"testing"
)

// coastRuleSet is a small set that reduces and occasionally contradicts:
// water, land, and a shore tile with water on top and land below.
func coastRuleSet() *RuleSet {
	rs := NewRuleSet("coast")
	rs.AddConnector(Rule{ID: 0, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{0, 0, 0}}}, AllDirection: true})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}}, AllDirection: true})
	rs.AddConnector(Rule{ID: 2, Connectors: []Connector{
		{Side: Top, Pattern: EdgePattern{0, 0, 0}},
		{Side: Right, Pattern: EdgePattern{1, 0, 0}},
		{Side: Bottom, Pattern: EdgePattern{1, 1, 1}},
		{Side: Left, Pattern: EdgePattern{0, 0, 1}},
	}})
	return rs
}

func TestNewSolverNilTable(t *testing.T) {
	if _, err := NewSolver(nil, Options{}); !errors.Is(err, ErrNilTable) {
		t.Errorf("NewSolver(nil) error = %v, want %v", err, ErrNilTable)
	}
}

func TestNewSolverSeed(t *testing.T) {
	table := mustCompile(t, uniformRuleSet(0, 1))

	s, _ := NewSolver(table, Options{Seed: 99})
	if s.Seed() != 99 {
		t.Errorf("Seed() = %d, want 99", s.Seed())
	}

	s, _ = NewSolver(table, Options{})
	if s.Seed() == 0 {
		t.Error("Seed() should be time-based when not set")
	}

	s, _ = NewSolver(table, Options{Rand: rand.New(rand.NewSource(5))})
	if s.Seed() != 0 {
		t.Errorf("Seed() with injected Rand = %d, want 0", s.Seed())
	}
	if s.Table() != table {
		t.Error("Table() did not return the solver's table")
	}
}

// A single tile with one symmetric connector on all sides solves to that
// tile everywhere.
func TestFullCollapseSingleTile(t *testing.T) {
	rs := NewRuleSet("single")
	rs.AddConnector(Rule{
		ID:           0,
		Connectors:   []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}},
		AllDirection: true,
	})
	solver := newTestSolver(t, rs, 7)

	sol, err := solver.CreateSolution(3, 3)
	if err != nil {
		t.Fatalf("CreateSolution() failed: %v", err)
	}
	if err := solver.FullCollapse(sol, nil); err != nil {
		t.Fatalf("FullCollapse() failed: %v", err)
	}

	for i, c := range sol.Cells() {
		if !c.Solved() {
			t.Errorf("cell %d not solved", i)
		}
		if got := c.Options(); !reflect.DeepEqual(got, []int{0}) {
			t.Errorf("cell %d options = %v, want [0]", i, got)
		}
	}
}

// Two mutually compatible tiles: forcing one corner then completing the grid
// leaves every cell with exactly one tile.
func TestCollapseThenFullCollapse(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1), 3)
	sol, _ := solver.CreateSolution(2, 2)

	if err := solver.CollapseTo(sol, 0, 0, 0); err != nil {
		t.Fatalf("CollapseTo() failed: %v", err)
	}
	if got := sol.Cell(0, 0).Options(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("cell (0,0) options = %v, want [0]", got)
	}

	if err := solver.FullCollapse(sol, nil); err != nil {
		t.Fatalf("FullCollapse() failed: %v", err)
	}

	if !sol.Solved() {
		t.Fatal("solution not solved")
	}
	for i, c := range sol.Cells() {
		if c.Entropy() != 1 {
			t.Errorf("cell %d has %d options, want 1", i, c.Entropy())
		}
		if c.Contradiction() {
			t.Errorf("cell %d is a contradiction", i)
		}
	}
}

// Surrounding the grid fixes only the outer ring when the border tile is
// compatible with everything.
func TestSurround(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1, 2), 11)
	sol, _ := solver.CreateSolution(4, 4)

	if err := solver.Surround(sol, 2); err != nil {
		t.Fatalf("Surround() failed: %v", err)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := sol.Cell(x, y)
			onRing := x == 0 || y == 0 || x == 3 || y == 3
			if onRing {
				if got := c.Options(); !reflect.DeepEqual(got, []int{2}) || !c.Solved() {
					t.Errorf("ring cell (%d,%d) options = %v solved = %v, want [2] solved", x, y, got, c.Solved())
				}
				continue
			}
			if got := c.Options(); !reflect.DeepEqual(got, []int{0, 1, 2}) || c.Solved() {
				t.Errorf("interior cell (%d,%d) options = %v solved = %v, want [0 1 2] unsolved", x, y, got, c.Solved())
			}
		}
	}

	if err := solver.FullCollapse(sol, nil); err != nil {
		t.Fatalf("FullCollapse() failed: %v", err)
	}
	if !sol.Solved() {
		t.Error("solution not solved after FullCollapse")
	}
}

func TestPropagationChecker(t *testing.T) {
	solver := newTestSolver(t, checkerRuleSet(), 1)
	sol, _ := solver.CreateSolution(3, 3)

	if err := solver.CollapseTo(sol, 0, 0, 0); err != nil {
		t.Fatalf("CollapseTo() failed: %v", err)
	}

	// One collapse decides the whole board
	if !sol.Solved() {
		t.Fatal("checker board should be solved by propagation alone")
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := (x + y) % 2
			if id, ok := sol.Cell(x, y).Tile(); !ok || id != want {
				t.Errorf("cell (%d,%d) = (%d, %v), want %d", x, y, id, ok, want)
			}
		}
	}
}

func TestContradictionIsSilentButDetectable(t *testing.T) {
	rs := NewRuleSet("split")
	rs.AddConnector(Rule{ID: 0, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{0, 0, 0}}}, AllDirection: true})
	rs.AddConnector(Rule{ID: 1, Connectors: []Connector{{Side: Top, Pattern: EdgePattern{1, 1, 1}}}, AllDirection: true})
	solver := newTestSolver(t, rs, 1)
	sol, _ := solver.CreateSolution(3, 1)

	if err := solver.CollapseTo(sol, 0, 0, 0); err != nil {
		t.Fatalf("CollapseTo(0,0) failed: %v", err)
	}
	if err := sol.CheckConsistency(); err != nil {
		t.Fatalf("unexpected contradiction: %v", err)
	}

	// Forcing the far end to the other tile empties every cell
	if err := solver.CollapseTo(sol, 2, 0, 1); err != nil {
		t.Fatalf("CollapseTo(2,0) should not report the contradiction, got %v", err)
	}
	if !sol.Solved() {
		t.Error("contradictions count as solved")
	}
	if got := len(sol.Contradictions()); got != 3 {
		t.Errorf("len(Contradictions()) = %d, want 3", got)
	}

	err := sol.CheckConsistency()
	var cerr *ContradictionError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrContradiction) {
		t.Fatalf("CheckConsistency() = %v, want *ContradictionError", err)
	}
	if len(cerr.Positions) != 3 {
		t.Errorf("len(Positions) = %d, want 3", len(cerr.Positions))
	}

	if err := solver.Collapse(sol, 1, 0); !errors.Is(err, ErrContradiction) {
		t.Errorf("Collapse() on empty cell error = %v, want %v", err, ErrContradiction)
	}
}

func TestCollapseErrors(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1), 1)
	other := newTestSolver(t, uniformRuleSet(0, 1), 1)
	sol, _ := solver.CreateSolution(2, 2)

	if err := solver.Collapse(sol, 2, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Collapse(2, 0) error = %v, want %v", err, ErrOutOfBounds)
	}
	if err := solver.CollapseTo(sol, 0, -1, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("CollapseTo(0, -1) error = %v, want %v", err, ErrOutOfBounds)
	}
	if err := other.Collapse(sol, 0, 0); !errors.Is(err, ErrForeignSolution) {
		t.Errorf("Collapse() with foreign solver error = %v, want %v", err, ErrForeignSolution)
	}
	if err := other.FullCollapse(sol, nil); !errors.Is(err, ErrForeignSolution) {
		t.Errorf("FullCollapse() with foreign solver error = %v, want %v", err, ErrForeignSolution)
	}
	if err := other.Surround(sol, 0); !errors.Is(err, ErrForeignSolution) {
		t.Errorf("Surround() with foreign solver error = %v, want %v", err, ErrForeignSolution)
	}
	if err := solver.FullCollapse(sol, &Position{X: 5, Y: 5}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("FullCollapse() with bad start error = %v, want %v", err, ErrOutOfBounds)
	}
}

func TestFullCollapseWithStart(t *testing.T) {
	solver := newTestSolver(t, coastRuleSet(), 21)
	sol, _ := solver.CreateSolution(6, 6)

	if err := solver.FullCollapse(sol, &Position{X: 3, Y: 3}); err != nil {
		t.Fatalf("FullCollapse() failed: %v", err)
	}
	if !sol.Solved() {
		t.Error("solution not solved")
	}
}

func TestFullCollapseCancelled(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1, 2), 1)
	sol, _ := solver.CreateSolution(4, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := solver.FullCollapseContext(ctx, sol, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("FullCollapseContext() error = %v, want %v", err, context.Canceled)
	}
}

func TestCollapseNeverGrowsOptions(t *testing.T) {
	seeds := []int64{1, 42, 100, 255, 1000}

	for _, seed := range seeds {
		solver := newTestSolver(t, coastRuleSet(), seed)
		sol, _ := solver.CreateSolution(6, 5)
		rng := rand.New(rand.NewSource(seed))

		prev := entropies(sol)
		for step := 0; step < 30 && !sol.Solved(); step++ {
			x, y := rng.Intn(6), rng.Intn(5)
			if err := solver.Collapse(sol, x, y); err != nil && !errors.Is(err, ErrContradiction) {
				t.Fatalf("seed %d: Collapse() failed: %v", seed, err)
			}
			next := entropies(sol)
			for i := range next {
				if next[i] > prev[i] {
					t.Fatalf("seed %d step %d: cell %d grew from %d to %d options", seed, step, i, prev[i], next[i])
				}
			}
			prev = next
		}
	}
}

// Each top-level step of the MRV loop solves at least one unsolved cell, so
// a grid needs at most width*height of them.
func TestFullCollapseTerminates(t *testing.T) {
	seeds := []int64{3, 17, 64, 512, 4096}
	rulesets := []*RuleSet{coastRuleSet(), uniformRuleSet(0, 1, 2, 3), checkerRuleSet()}
	const width, height = 7, 5

	for _, rs := range rulesets {
		table := mustCompile(t, rs)
		for _, seed := range seeds {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			solver, err := NewSolver(table, Options{Seed: seed, Logger: log})
			if err != nil {
				t.Fatalf("NewSolver() failed: %v", err)
			}
			sol, _ := solver.CreateSolution(width, height)

			if err := solver.FullCollapse(sol, nil); err != nil {
				t.Fatalf("%s seed %d: FullCollapse() failed: %v", rs.Name, seed, err)
			}
			if !sol.Solved() {
				t.Fatalf("%s seed %d: grid not solved", rs.Name, seed)
			}

			collapses := fullCollapseCount(t, &buf)
			if collapses < 1 || collapses > width*height {
				t.Errorf("%s seed %d: %d collapses, want 1..%d", rs.Name, seed, collapses, width*height)
			}
		}
	}
}

// fullCollapseCount reads the collapse count FullCollapse logs when it ends.
func fullCollapseCount(t *testing.T, buf *bytes.Buffer) int {
	t.Helper()
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry struct {
			Msg       string `json:"msg"`
			Collapses *int   `json:"collapses"`
		}
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry.Msg == "Full collapse finished" && entry.Collapses != nil {
			return *entry.Collapses
		}
	}
	t.Fatal("FullCollapse did not log its collapse count")
	return 0
}

func TestLeastEntropyPrefersEarliest(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1, 2), 1)
	sol, _ := solver.CreateSolution(3, 1)

	sol.cells[1].options = []int{0, 1}
	sol.cells[2].options = []int{1, 2}
	if got := sol.leastEntropyIndex(); got != 1 {
		t.Errorf("leastEntropyIndex() = %d, want 1", got)
	}

	sol.cells[1].solved = true
	if got := sol.leastEntropyIndex(); got != 2 {
		t.Errorf("leastEntropyIndex() = %d, want 2", got)
	}
}

func TestSameSeedSameResult(t *testing.T) {
	table := mustCompile(t, coastRuleSet())

	run := func() [][]int {
		solver, _ := NewSolver(table, Options{Seed: 1234})
		sol, _ := solver.CreateSolution(8, 8)
		if err := solver.FullCollapse(sol, nil); err != nil {
			t.Fatalf("FullCollapse() failed: %v", err)
		}
		return sol.Snapshot().Cells
	}

	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Error("two runs with the same seed produced different grids")
	}
}

func TestPickMostConstrained(t *testing.T) {
	solver := newTestSolver(t, uniformRuleSet(0, 1, 2), 1)
	sol, _ := solver.CreateSolution(3, 1)
	sol.cells[2].options = []int{1}

	open := []Position{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 0}}
	if got := solver.pickMostConstrained(sol, open); got != 1 {
		t.Errorf("pickMostConstrained() = %d, want 1", got)
	}

	// Ties are drawn from the tied entries only
	open = []Position{{X: 0, Y: 0}, {X: 1, Y: 0}}
	for i := 0; i < 20; i++ {
		if got := solver.pickMostConstrained(sol, open); got != 0 && got != 1 {
			t.Fatalf("pickMostConstrained() = %d, want 0 or 1", got)
		}
	}
}

func entropies(sol *Solution) []int {
	out := make([]int, len(sol.cells))
	for i, c := range sol.cells {
		out[i] = c.Entropy()
	}
	return out
}
