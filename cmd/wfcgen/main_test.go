package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lawnchairsociety/tilecollapse/internal/store"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

func testSnapshot(t *testing.T) *wfc.Snapshot {
	t.Helper()
	rs := wfc.NewRuleSet("plain")
	rs.AddConnector(wfc.Rule{ID: 0, Connectors: []wfc.Connector{{Side: wfc.Top, Pattern: wfc.EdgePattern{1, 1, 1}}}, AllDirection: true})
	table, err := rs.Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	solver, err := wfc.NewSolver(table, wfc.Options{Seed: 1})
	if err != nil {
		t.Fatalf("NewSolver() failed: %v", err)
	}
	sol, err := solver.CreateSolution(2, 2)
	if err != nil {
		t.Fatalf("CreateSolution() failed: %v", err)
	}
	return sol.Snapshot()
}

func TestSaveSolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.db")
	snap := testSnapshot(t)

	id, err := saveSolution(path, "field", snap)
	if err != nil {
		t.Fatalf("saveSolution() failed: %v", err)
	}
	if id == 0 {
		t.Error("saveSolution() returned id 0")
	}

	// The failed save must not leave the database open for the next one
	if _, err := saveSolution(path, "field", snap); !errors.Is(err, store.ErrNameTaken) {
		t.Errorf("duplicate saveSolution() error = %v, want %v", err, store.ErrNameTaken)
	}
	if _, err := saveSolution(path, "other", snap); err != nil {
		t.Errorf("saveSolution() after a failure: %v", err)
	}

	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	defer db.Close()
	ids, err := db.SolutionIDs()
	if err != nil {
		t.Fatalf("SolutionIDs() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("stored %d solutions, want 2", len(ids))
	}
}

func TestSaveSolutionBadPath(t *testing.T) {
	// A regular file where the database directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	path := filepath.Join(blocker, "solutions.db")
	if _, err := saveSolution(path, "", testSnapshot(t)); err == nil {
		t.Error("saveSolution() under a regular file should fail")
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    wfc.Position
		wantErr bool
	}{
		{"3,4", wfc.Position{X: 3, Y: 4}, false},
		{" 0 , 7 ", wfc.Position{X: 0, Y: 7}, false},
		{"3", wfc.Position{}, true},
		{"a,1", wfc.Position{}, true},
		{"1,b", wfc.Position{}, true},
	}

	for _, tc := range tests {
		got, err := parsePosition(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePosition(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePosition(%q) failed: %v", tc.in, err)
			continue
		}
		if *got != tc.want {
			t.Errorf("parsePosition(%q) = %+v, want %+v", tc.in, *got, tc.want)
		}
	}
}
