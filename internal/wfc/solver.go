package wfc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/lawnchairsociety/tilecollapse/internal/logger"
)

var (
	ErrContradiction       = errors.New("wfc: contradiction - no valid tiles for cell")
	ErrInvalidSize         = errors.New("wfc: invalid grid size")
	ErrOutOfBounds         = errors.New("wfc: position outside grid")
	ErrForeignSolution     = errors.New("wfc: solution belongs to a different solver")
	ErrEmptyRuleSet        = errors.New("wfc: rule set has no rules")
	ErrNilTable            = errors.New("wfc: lookup table is nil")
	ErrInvalidSide         = errors.New("wfc: invalid side")
	ErrInvalidSideMode     = errors.New("wfc: invalid side mode")
	ErrInvalidPattern      = errors.New("wfc: edge pattern must have exactly 3 values")
	ErrFingerprintMismatch = errors.New("wfc: snapshot was built from a different rule set")
)

// ContradictionError lists the cells that ran out of candidates
type ContradictionError struct {
	Positions []Position
}

func (e *ContradictionError) Error() string {
	parts := make([]string, 0, len(e.Positions))
	for i, p := range e.Positions {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(e.Positions)-i))
			break
		}
		parts = append(parts, fmt.Sprintf("(%d,%d)", p.X, p.Y))
	}
	return fmt.Sprintf("%v: %d cell(s) at %s", ErrContradiction, len(e.Positions), strings.Join(parts, " "))
}

func (e *ContradictionError) Unwrap() error {
	return ErrContradiction
}

// Options configures a Solver
type Options struct {
	// Seed seeds the random source when Rand is nil. Zero means time-based.
	Seed int64
	// Rand overrides the random source used for tie-breaking and tile choice.
	Rand *rand.Rand
	// Logger receives solver diagnostics. Defaults to the package logger.
	Logger *slog.Logger
}

// Solver collapses Solutions against one compiled LookupTable
type Solver struct {
	table *LookupTable
	rng   *rand.Rand
	seed  int64
	log   *slog.Logger
}

// NewSolver creates a solver over a compiled lookup table
func NewSolver(table *LookupTable, opts Options) (*Solver, error) {
	if table == nil {
		return nil, ErrNilTable
	}

	seed := opts.Seed
	rng := opts.Rand
	if rng == nil {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	log := opts.Logger
	if log == nil {
		log = logger.With("component", "wfc", "ruleset", table.Name())
	}

	return &Solver{
		table: table,
		rng:   rng,
		seed:  seed,
		log:   log,
	}, nil
}

// Table returns the lookup table the solver was built with
func (s *Solver) Table() *LookupTable {
	return s.table
}

// Seed returns the seed of the solver's random source, or 0 if the source
// was injected.
func (s *Solver) Seed() int64 {
	return s.seed
}

// CreateSolution builds a width x height grid with every cell holding all
// known identifiers.
func (s *Solver) CreateSolution(width, height int) (*Solution, error) {
	return newSolution(s, width, height)
}

// Collapse fixes the cell at (x, y) to one of its candidates chosen
// uniformly at random, then propagates the change.
func (s *Solver) Collapse(sol *Solution, x, y int) error {
	cell, err := s.cellAt(sol, x, y)
	if err != nil {
		return err
	}
	if len(cell.options) == 0 {
		cell.solved = true
		return fmt.Errorf("%w at (%d,%d)", ErrContradiction, x, y)
	}
	id := cell.options[s.rng.Intn(len(cell.options))]
	s.collapseTo(sol, cell, x, y, id)
	return nil
}

// CollapseTo forces the cell at (x, y) to id and propagates the change. id is
// not checked against the cell's current candidates.
func (s *Solver) CollapseTo(sol *Solution, x, y, id int) error {
	cell, err := s.cellAt(sol, x, y)
	if err != nil {
		return err
	}
	s.collapseTo(sol, cell, x, y, id)
	return nil
}

func (s *Solver) collapseTo(sol *Solution, cell *Cell, x, y, id int) {
	cell.options = []int{id}
	cell.solved = true

	stats := s.propagate(sol, x, y)
	s.log.Debug("Cell collapsed",
		"x", x, "y", y, "tile", id,
		"visits", stats.visits,
		"reductions", stats.reductions)
	if stats.contradictions > 0 {
		s.log.Warn("Propagation produced contradictions",
			"x", x, "y", y, "tile", id,
			"count", stats.contradictions)
	}
}

// FullCollapse drives the solution to a solved state. If start is non-nil
// that cell is collapsed first. Then the unsolved cell with the fewest
// candidates (earliest in row-major order on ties) is collapsed until every
// cell is solved.
func (s *Solver) FullCollapse(sol *Solution, start *Position) error {
	return s.FullCollapseContext(context.Background(), sol, start)
}

// FullCollapseContext is FullCollapse with cancellation checked between
// top-level collapses.
func (s *Solver) FullCollapseContext(ctx context.Context, sol *Solution, start *Position) error {
	if err := s.owns(sol); err != nil {
		return err
	}

	if start != nil {
		if err := s.Collapse(sol, start.X, start.Y); err != nil && !errors.Is(err, ErrContradiction) {
			return err
		}
	}

	collapses := 0
	for !sol.Solved() {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := sol.leastEntropyIndex()
		x, y := sol.IndexToPosition(idx)
		if err := s.Collapse(sol, x, y); err != nil && !errors.Is(err, ErrContradiction) {
			return err
		}
		collapses++
	}

	solved, total := sol.Progress()
	s.log.Debug("Full collapse finished",
		"collapses", collapses,
		"solved", solved,
		"total", total,
		"contradictions", len(sol.Contradictions()))
	return nil
}

// Surround forces every cell on the outer ring of the grid to id
func (s *Solver) Surround(sol *Solution, id int) error {
	if err := s.owns(sol); err != nil {
		return err
	}
	for _, p := range sol.Border() {
		if err := s.CollapseTo(sol, p.X, p.Y, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) owns(sol *Solution) error {
	if sol == nil || sol.solver != s {
		return ErrForeignSolution
	}
	return nil
}

func (s *Solver) cellAt(sol *Solution, x, y int) (*Cell, error) {
	if err := s.owns(sol); err != nil {
		return nil, err
	}
	if !sol.ContainsPosition(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, sol.width, sol.height)
	}
	return sol.cells[sol.PositionToIndex(x, y)], nil
}

// leastEntropyIndex returns the index of the first unsolved cell with the
// fewest candidates, or -1 if every cell is solved.
func (sol *Solution) leastEntropyIndex() int {
	best, bestIdx := 0, -1
	for i, c := range sol.cells {
		if c.solved {
			continue
		}
		if bestIdx == -1 || len(c.options) < best {
			best, bestIdx = len(c.options), i
		}
	}
	return bestIdx
}

// Border returns the perimeter positions: the top row, the bottom row, then
// the left and right columns between them.
func (sol *Solution) Border() []Position {
	var out []Position
	for x := 0; x < sol.width; x++ {
		out = append(out, Position{X: x, Y: 0})
	}
	if sol.height > 1 {
		for x := 0; x < sol.width; x++ {
			out = append(out, Position{X: x, Y: sol.height - 1})
		}
	}
	for y := 1; y < sol.height-1; y++ {
		out = append(out, Position{X: 0, Y: y})
		if sol.width > 1 {
			out = append(out, Position{X: sol.width - 1, Y: y})
		}
	}
	return out
}
