package wfc

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSnapshotRestore(t *testing.T) {
	solver := newTestSolver(t, coastRuleSet(), 77)
	sol, _ := solver.CreateSolution(5, 4)
	if err := solver.CollapseTo(sol, 2, 2, 1); err != nil {
		t.Fatalf("CollapseTo() failed: %v", err)
	}

	snap := sol.Snapshot()
	if snap.Width != 5 || snap.Height != 4 || len(snap.Cells) != 20 {
		t.Fatalf("snapshot size = %dx%d with %d cells", snap.Width, snap.Height, len(snap.Cells))
	}
	if snap.Seed != 77 {
		t.Errorf("Seed = %d, want 77", snap.Seed)
	}
	if snap.RuleSet != "coast" {
		t.Errorf("RuleSet = %q, want coast", snap.RuleSet)
	}

	restored, err := solver.Restore(snap)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if !reflect.DeepEqual(restored.Snapshot().Cells, snap.Cells) {
		t.Error("restored cells differ from snapshot")
	}

	// The restored grid keeps solving with the same solver
	if err := solver.FullCollapse(restored, nil); err != nil {
		t.Fatalf("FullCollapse() on restored solution failed: %v", err)
	}
	if !restored.Solved() {
		t.Error("restored solution not solved")
	}
}

func TestSnapshotYAML(t *testing.T) {
	solver := newTestSolver(t, checkerRuleSet(), 5)
	sol, _ := solver.CreateSolution(2, 2)
	solver.CollapseTo(sol, 0, 0, 1)

	out, err := yaml.Marshal(sol.Snapshot())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(out, &snap); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := [][]int{{1}, {0}, {0}, {1}}
	if !reflect.DeepEqual(snap.Cells, want) {
		t.Errorf("Cells = %v, want %v", snap.Cells, want)
	}
	if !snap.Solved {
		t.Error("Solved = false, want true")
	}
}

func TestRestoreRejectsOtherRuleSet(t *testing.T) {
	a := newTestSolver(t, checkerRuleSet(), 1)
	b := newTestSolver(t, uniformRuleSet(0, 1), 1)
	sol, _ := a.CreateSolution(2, 2)

	if _, err := b.Restore(sol.Snapshot()); !errors.Is(err, ErrFingerprintMismatch) {
		t.Errorf("Restore() error = %v, want %v", err, ErrFingerprintMismatch)
	}
}

func TestRestoreRejectsBadCellCount(t *testing.T) {
	solver := newTestSolver(t, checkerRuleSet(), 1)
	sol, _ := solver.CreateSolution(2, 2)
	snap := sol.Snapshot()
	snap.Cells = snap.Cells[:3]

	if _, err := solver.Restore(snap); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Restore() error = %v, want %v", err, ErrInvalidSize)
	}
}

func TestRestoreRejectsBadDimensions(t *testing.T) {
	solver := newTestSolver(t, checkerRuleSet(), 1)
	fp := solver.table.Fingerprint()

	tests := []struct {
		name          string
		width, height int
		cells         [][]int
	}{
		{"huge", math.MaxInt32, math.MaxInt32, [][]int{{0}}},
		{"overflowing", math.MaxInt, 4, [][]int{{0}}},
		{"zero width", 0, 2, [][]int{{0}, {1}}},
		{"negative height", 2, -1, [][]int{{0}, {1}}},
		{"no cells", 2, 2, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := &Snapshot{Fingerprint: fp, Width: tc.width, Height: tc.height, Cells: tc.cells}
			if _, err := solver.Restore(snap); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Restore() error = %v, want %v", err, ErrInvalidSize)
			}
		})
	}
}

func TestSnapshotContradictions(t *testing.T) {
	snap := &Snapshot{Cells: [][]int{{1}, {}, {0, 1}, {}}}
	if got := snap.Contradictions(); got != 2 {
		t.Errorf("Contradictions() = %d, want 2", got)
	}
}
