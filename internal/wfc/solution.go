package wfc

import "fmt"

// Position is a cell coordinate on the grid
type Position struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Cell represents a single grid cell during solving
type Cell struct {
	options []int
	solved  bool
}

func newCell(ids []int) *Cell {
	return &Cell{
		options: append([]int(nil), ids...),
		solved:  len(ids) <= 1,
	}
}

// Options returns a copy of the remaining candidate identifiers
func (c *Cell) Options() []int {
	return append([]int(nil), c.options...)
}

// Entropy returns the number of remaining candidates
func (c *Cell) Entropy() int {
	return len(c.options)
}

// Solved returns true once the cell has at most one candidate left
func (c *Cell) Solved() bool {
	return c.solved
}

// Contradiction returns true if no candidate is left for the cell
func (c *Cell) Contradiction() bool {
	return len(c.options) == 0
}

// Tile returns the identifier the cell collapsed to. ok is false while the
// cell is unsolved or in contradiction.
func (c *Cell) Tile() (id int, ok bool) {
	if !c.solved || len(c.options) != 1 {
		return 0, false
	}
	return c.options[0], true
}

// Has returns true if id is still a candidate
func (c *Cell) Has(id int) bool {
	for _, o := range c.options {
		if o == id {
			return true
		}
	}
	return false
}

// set replaces the candidates, keeping the solved flag in step
func (c *Cell) set(options []int) {
	c.options = options
	if len(options) <= 1 {
		c.solved = true
	}
}

// Solution is a width x height grid of cells in row-major order, bound to
// the Solver that created it. It is owned by a single caller and not safe
// for concurrent use.
type Solution struct {
	width, height int
	cells         []*Cell
	solver        *Solver
}

func newSolution(s *Solver, width, height int) (*Solution, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	ids := s.table.Identifiers()
	sol := &Solution{
		width:  width,
		height: height,
		cells:  make([]*Cell, width*height),
		solver: s,
	}
	for i := range sol.cells {
		sol.cells[i] = newCell(ids)
	}
	return sol, nil
}

// Size returns the grid width and height
func (sol *Solution) Size() (width, height int) {
	return sol.width, sol.height
}

// Cells returns the cells in row-major order. The slice is shared with the
// solution; callers must not modify it.
func (sol *Solution) Cells() []*Cell {
	return sol.cells
}

// Solver returns the solver the solution was created by
func (sol *Solution) Solver() *Solver {
	return sol.solver
}

// PositionToIndex converts a grid position to its row-major index
func (sol *Solution) PositionToIndex(x, y int) int {
	return x + y*sol.width
}

// IndexToPosition converts a row-major index back to a grid position
func (sol *Solution) IndexToPosition(index int) (x, y int) {
	return index % sol.width, index / sol.width
}

// ContainsPosition returns true if (x, y) lies inside the grid
func (sol *Solution) ContainsPosition(x, y int) bool {
	return x >= 0 && x < sol.width && y >= 0 && y < sol.height
}

// NeighborOf returns the coordinates of the neighbour of (x, y) on the given
// side. ok is false when that neighbour falls outside the grid.
func (sol *Solution) NeighborOf(x, y int, side Side) (nx, ny int, ok bool) {
	if !side.Valid() {
		return 0, 0, false
	}
	dx, dy := side.offset()
	nx, ny = x+dx, y+dy
	if !sol.ContainsPosition(nx, ny) {
		return 0, 0, false
	}
	return nx, ny, true
}

// Cell returns the cell at (x, y), or nil outside the grid
func (sol *Solution) Cell(x, y int) *Cell {
	if !sol.ContainsPosition(x, y) {
		return nil
	}
	return sol.cells[sol.PositionToIndex(x, y)]
}

// Solved returns true if every cell is solved
func (sol *Solution) Solved() bool {
	for _, c := range sol.cells {
		if !c.solved {
			return false
		}
	}
	return true
}

// Contradictions returns the positions of cells left without candidates
func (sol *Solution) Contradictions() []Position {
	var out []Position
	for i, c := range sol.cells {
		if c.Contradiction() {
			x, y := sol.IndexToPosition(i)
			out = append(out, Position{X: x, Y: y})
		}
	}
	return out
}

// CheckConsistency returns a *ContradictionError if any cell has no
// candidates left, nil otherwise.
func (sol *Solution) CheckConsistency() error {
	positions := sol.Contradictions()
	if len(positions) == 0 {
		return nil
	}
	return &ContradictionError{Positions: positions}
}

// Progress returns how many cells are solved and the total cell count
func (sol *Solution) Progress() (solved, total int) {
	for _, c := range sol.cells {
		if c.solved {
			solved++
		}
	}
	return solved, len(sol.cells)
}

// Reset returns every cell to the full candidate set
func (sol *Solution) Reset() {
	ids := sol.solver.table.Identifiers()
	for i := range sol.cells {
		sol.cells[i] = newCell(ids)
	}
}
