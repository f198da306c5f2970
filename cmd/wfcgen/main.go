package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilecollapse/internal/logger"
	"github.com/lawnchairsociety/tilecollapse/internal/store"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

func main() {
	rulesFile := flag.String("rules", "data/rulesets/coast.yaml", "Path to rule set YAML file")
	width := flag.Int("width", 24, "Grid width")
	height := flag.Int("height", 12, "Grid height")
	seed := flag.Int64("seed", 0, "Generation seed (default: random based on current time)")
	attempts := flag.Int("attempts", 10, "Restarts allowed after a contradiction")
	surround := flag.Int("surround", -1, "Tile to force onto the outer ring (-1 for none)")
	start := flag.String("start", "", "Cell to collapse first, as x,y")
	allowContradictions := flag.Bool("allow-contradictions", false, "Keep the first attempt even if it contradicts")
	input := flag.String("input", "", "Render a saved snapshot YAML instead of generating")
	outputFile := flag.String("output", "", "Write the snapshot as YAML to this file")
	saveDB := flag.String("save", "", "Store the result in this SQLite database")
	name := flag.String("name", "", "Name to store the result under (with -save)")
	verbose := flag.Bool("v", false, "Log solver diagnostics")
	flag.Parse()

	_ = godotenv.Load()

	logConfig := logger.DefaultConfig()
	logConfig.Level = "WARN"
	if *verbose {
		logConfig.Level = "DEBUG"
	}
	logger.Initialize(logConfig)

	set, err := wfc.LoadRuleSetFromYAML(*rulesFile)
	if err != nil {
		fail("loading rule set", err)
	}

	var (
		sol      *wfc.Solution
		usedSeed int64
		tries    int
	)

	if *input != "" {
		sol, err = restoreSnapshot(set, *input)
		if err != nil {
			fail("restoring snapshot", err)
		}
	} else {
		if *seed == 0 {
			*seed = time.Now().UnixNano()
		}
		cfg := wfc.DefaultGenerateConfig(*width, *height, *seed)
		cfg.MaxAttempts = *attempts
		cfg.AllowContradictions = *allowContradictions
		if *surround >= 0 {
			cfg.Surround = surround
		}
		if *start != "" {
			pos, err := parsePosition(*start)
			if err != nil {
				fail("parsing -start", err)
			}
			cfg.Start = pos
		}

		gen, err := wfc.Generate(context.Background(), set.Table, cfg)
		if err != nil {
			fail("generating", err)
		}
		sol, usedSeed, tries = gen.Solution, gen.Seed, gen.Attempts
	}

	fmt.Print(wfc.RenderASCII(sol, set.Glyphs))

	solved, total := sol.Progress()
	contradictions := len(sol.Contradictions())
	if *input == "" {
		fmt.Printf("\nrule set %s, seed %d, %d attempt(s)\n", set.Table.Name(), usedSeed, tries)
	}
	fmt.Printf("%d/%d cells solved, %d contradiction(s)\n", solved, total, contradictions)

	snap := sol.Snapshot()

	if *outputFile != "" {
		data, err := yaml.Marshal(snap)
		if err != nil {
			fail("encoding snapshot", err)
		}
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			fail("writing snapshot", err)
		}
		fmt.Printf("Snapshot written to %s\n", *outputFile)
	}

	if *saveDB != "" {
		id, err := saveSolution(*saveDB, *name, snap)
		if err != nil {
			fail("saving solution", err)
		}
		fmt.Printf("Saved as solution %d\n", id)
	}
}

// saveSolution stores snap in the SQLite database at path. The database is
// closed before returning, on failure too.
func saveSolution(path, name string, snap *wfc.Snapshot) (int64, error) {
	db, err := store.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	id, err := db.SaveSolution(name, snap)
	if closeErr := db.Close(); err == nil && closeErr != nil {
		return 0, closeErr
	}
	return id, err
}

func restoreSnapshot(set *wfc.LoadedRuleSet, path string) (*wfc.Solution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap wfc.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	solver, err := wfc.NewSolver(set.Table, wfc.Options{Seed: snap.Seed})
	if err != nil {
		return nil, err
	}
	return solver.Restore(&snap)
}

// parsePosition parses "x,y".
func parsePosition(s string) (*wfc.Position, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return nil, errors.New("expected x,y")
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return nil, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return nil, err
	}
	return &wfc.Position{X: x, Y: y}, nil
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", action, err)
	os.Exit(1)
}
