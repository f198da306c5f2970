package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lawnchairsociety/tilecollapse/test"
)

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "Server address (host:port)")
	ruleSet := flag.String("ruleset", "", "Rule set to test with (default: first listed by the server)")
	width := flag.Int("width", 12, "Grid width")
	height := flag.Int("height", 8, "Grid height")
	filter := flag.String("run", "", "Only run tests whose name contains this text")
	list := flag.Bool("list", false, "List test names and exit")
	verbose := flag.Bool("v", false, "Verbose output - show detailed actions for each test")
	flag.Parse()

	if *list {
		for _, name := range test.GetTestNames() {
			fmt.Println(name)
		}
		return
	}

	// Set verbose mode
	test.Verbose = *verbose

	fmt.Printf("Running integration tests against %s\n", *serverAddr)
	fmt.Println("Make sure the server is running!")
	if *verbose {
		fmt.Println("Verbose mode enabled - showing detailed test actions")
	}
	fmt.Println()

	target := test.Target{
		Addr:    *serverAddr,
		RuleSet: *ruleSet,
		Width:   *width,
		Height:  *height,
	}
	results := test.RunFilteredTests(target, *filter)
	test.PrintResults(results)

	// Exit with error code if any tests failed
	for _, result := range results {
		if !result.Passed {
			os.Exit(1)
		}
	}
}
