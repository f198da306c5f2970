package wfc

import (
	"context"
	"fmt"
)

// GenerateConfig contains parameters for one-shot generation
type GenerateConfig struct {
	Width, Height int
	Seed          int64     // Base seed; attempt n uses Seed + n*1000
	Surround      *int      // Tile forced onto the outer ring, if set
	Start         *Position // Cell collapsed first, if set
	MaxAttempts   int       // Fresh restarts allowed after a contradiction

	// AllowContradictions returns the first attempt even if some cells
	// ended up without candidates.
	AllowContradictions bool
}

// DefaultGenerateConfig returns reasonable defaults for a grid size
func DefaultGenerateConfig(width, height int, seed int64) *GenerateConfig {
	return &GenerateConfig{
		Width:       width,
		Height:      height,
		Seed:        seed,
		MaxAttempts: 10,
	}
}

// Generated is the output of Generate
type Generated struct {
	Solution *Solution
	Solver   *Solver
	Seed     int64 // Seed of the attempt that produced Solution
	Attempts int
}

// Generate builds and fully collapses solutions until one finishes without
// contradictions. Each attempt starts from a fresh grid with a derived seed;
// nothing is undone within an attempt.
func Generate(ctx context.Context, table *LookupTable, cfg *GenerateConfig) (*Generated, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 || cfg.AllowContradictions {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		seed := cfg.Seed + int64(attempt*1000)
		if seed == 0 {
			// Zero would select a time-based seed
			seed = 1
		}

		solver, err := NewSolver(table, Options{Seed: seed})
		if err != nil {
			return nil, err
		}

		sol, err := solver.CreateSolution(cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}

		if cfg.Surround != nil {
			if err := solver.Surround(sol, *cfg.Surround); err != nil {
				return nil, err
			}
		}

		if err := solver.FullCollapseContext(ctx, sol, cfg.Start); err != nil {
			return nil, err
		}

		result := &Generated{
			Solution: sol,
			Solver:   solver,
			Seed:     seed,
			Attempts: attempt + 1,
		}

		if cfg.AllowContradictions {
			return result, nil
		}
		if err := sol.CheckConsistency(); err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
