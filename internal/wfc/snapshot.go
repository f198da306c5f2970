package wfc

import "fmt"

// Snapshot is a serializable copy of a Solution's cell state
type Snapshot struct {
	RuleSet     string  `yaml:"ruleset" json:"ruleset"`
	Fingerprint string  `yaml:"fingerprint" json:"fingerprint"`
	Width       int     `yaml:"width" json:"width"`
	Height      int     `yaml:"height" json:"height"`
	Seed        int64   `yaml:"seed" json:"seed"`
	Solved      bool    `yaml:"solved" json:"solved"`
	Cells       [][]int `yaml:"cells" json:"cells"`
}

// Contradictions counts the cells in the snapshot with no candidates
func (snap *Snapshot) Contradictions() int {
	n := 0
	for _, c := range snap.Cells {
		if len(c) == 0 {
			n++
		}
	}
	return n
}

// Snapshot copies the solution's cell state
func (sol *Solution) Snapshot() *Snapshot {
	snap := &Snapshot{
		RuleSet:     sol.solver.table.Name(),
		Fingerprint: sol.solver.table.Fingerprint(),
		Width:       sol.width,
		Height:      sol.height,
		Seed:        sol.solver.seed,
		Solved:      sol.Solved(),
		Cells:       make([][]int, len(sol.cells)),
	}
	for i, c := range sol.cells {
		snap.Cells[i] = c.Options()
		if snap.Cells[i] == nil {
			snap.Cells[i] = []int{}
		}
	}
	return snap
}

// Restore rebuilds a Solution from a snapshot taken with the same rule set
func (s *Solver) Restore(snap *Snapshot) (*Solution, error) {
	if snap.Fingerprint != s.table.Fingerprint() {
		return nil, fmt.Errorf("%w: have %s, snapshot has %s",
			ErrFingerprintMismatch, shortFingerprint(s.table.Fingerprint()), shortFingerprint(snap.Fingerprint))
	}

	// Checked before allocating; width*height may overflow
	n := len(snap.Cells)
	if snap.Width < 1 || snap.Height < 1 || n%snap.Width != 0 || n/snap.Width != snap.Height {
		return nil, fmt.Errorf("%w: snapshot has %d cells for %dx%d",
			ErrInvalidSize, n, snap.Width, snap.Height)
	}

	sol, err := newSolution(s, snap.Width, snap.Height)
	if err != nil {
		return nil, err
	}

	for i, options := range snap.Cells {
		sol.cells[i] = &Cell{
			options: append([]int(nil), options...),
			solved:  len(options) <= 1,
		}
	}
	return sol, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
