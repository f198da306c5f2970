package wfc

// propagationStats summarises one propagation pass
type propagationStats struct {
	visits         int
	reductions     int
	contradictions int
}

// propagate restores arc consistency after the cell at (x, y) has had its
// candidates reduced. The open worklist is processed most-constrained first:
// among entries sharing the smallest candidate count one is drawn at random.
// Candidate counts only ever shrink, so the loop terminates.
func (s *Solver) propagate(sol *Solution, x, y int) propagationStats {
	var stats propagationStats
	open := []Position{{X: x, Y: y}}

	for len(open) > 0 {
		idx := s.pickMostConstrained(sol, open)
		current := open[idx]
		open = append(open[:idx], open[idx+1:]...)
		stats.visits++

		cell := sol.cells[sol.PositionToIndex(current.X, current.Y)]

		for _, side := range AllSides() {
			nx, ny, ok := sol.NeighborOf(current.X, current.Y, side)
			if !ok {
				continue
			}
			neighbour := sol.cells[sol.PositionToIndex(nx, ny)]
			before := len(neighbour.options)

			next := s.constrain(cell.options, neighbour.options, side)
			neighbour.set(next)

			if len(next) != before {
				stats.reductions++
				open = append(open, Position{X: nx, Y: ny})
				if len(next) == 0 {
					stats.contradictions++
				}
			}
		}
	}

	return stats
}

// pickMostConstrained returns the index of a worklist entry whose cell has
// the fewest candidates, choosing uniformly at random among ties.
func (s *Solver) pickMostConstrained(sol *Solution, open []Position) int {
	best := -1
	var ties []int
	for i, p := range open {
		n := len(sol.cells[sol.PositionToIndex(p.X, p.Y)].options)
		switch {
		case best == -1 || n < best:
			best = n
			ties = append(ties[:0], i)
		case n == best:
			ties = append(ties, i)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[s.rng.Intn(len(ties))]
}

// constrain keeps the neighbour candidates that at least one of the current
// candidates allows on the given side. The neighbour's existing order is
// preserved.
func (s *Solver) constrain(current, neighbour []int, side Side) []int {
	allowed := make(idSet, len(neighbour))
	for _, o := range current {
		for id := range s.table.allowedSet(o, side) {
			allowed[id] = struct{}{}
		}
	}

	next := make([]int, 0, len(neighbour))
	seen := make(idSet, len(neighbour))
	for _, n := range neighbour {
		if _, ok := allowed[n]; !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		next = append(next, n)
	}
	return next
}
