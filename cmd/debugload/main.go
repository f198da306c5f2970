package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

func main() {
	dir := flag.String("dir", "data/rulesets", "Rule set directory to load")
	only := flag.String("ruleset", "", "Only print this rule set")
	flag.Parse()

	registry := wfc.NewRuleSetRegistry()
	count, err := registry.LoadDir(*dir)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d rule sets from %s\n", count, *dir)

	for _, name := range registry.Names() {
		if *only != "" && name != *only {
			continue
		}
		set, _ := registry.Get(name)

		fmt.Printf("\n--- %s (%s, %s) ---\n", name, set.Rules.SideMode, set.Table.Fingerprint()[:12])
		for _, id := range set.Table.Identifiers() {
			glyph := ""
			if g, ok := set.Glyphs[id]; ok {
				glyph = fmt.Sprintf(" %q", g)
			}
			fmt.Printf("tile %d%s\n", id, glyph)

			for _, side := range wfc.AllSides() {
				neighbours := set.Table.Neighbours(id, side)
				if len(neighbours) == 0 {
					// Any cell next to this side will contradict
					fmt.Printf("  %-6s none\n", side)
					continue
				}
				parts := make([]string, len(neighbours))
				for i, n := range neighbours {
					parts[i] = fmt.Sprint(n)
				}
				fmt.Printf("  %-6s %s\n", side, strings.Join(parts, " "))
			}
		}
	}
}
