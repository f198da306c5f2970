// Package test holds integration scenarios run by cmd/testrunner against a
// live server.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// uniqueCounter provides unique solution names within a single run
var uniqueCounter uint64

// uniqueName generates a name that will not collide with earlier runs
func uniqueName(base string) string {
	counter := atomic.AddUint64(&uniqueCounter, 1)
	return fmt.Sprintf("%s-%d-%d", base, time.Now().Unix(), counter)
}

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// Target is the server under test and the grid scenarios use
type Target struct {
	Addr    string // host:port
	RuleSet string // empty means the first rule set the server lists
	Width   int
	Height  int
}

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

func pass(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

// =============================================================================
// HTTP Helpers
// =============================================================================

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON sends body (if any) as JSON and decodes a JSON answer into out (if
// any). It returns the status code.
func doJSON(method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (t Target) url(path string) string {
	return "http://" + t.Addr + path
}

type ruleSetInfo struct {
	Name        string `json:"name"`
	Identifiers []int  `json:"identifiers"`
}

// resolve fills in the rule set when the target leaves it empty
func (t Target) resolve() (Target, error) {
	if t.RuleSet != "" {
		return t, nil
	}
	var sets []ruleSetInfo
	status, err := doJSON(http.MethodGet, t.url("/api/rulesets"), nil, &sets)
	if err != nil {
		return t, err
	}
	if status != http.StatusOK || len(sets) == 0 {
		return t, fmt.Errorf("server lists no rule sets (status %d)", status)
	}
	t.RuleSet = sets[0].Name
	return t, nil
}

// =============================================================================
// Runner
// =============================================================================

// testEntry holds a test function and its name
type testEntry struct {
	Name string
	Func func(Target) TestResult
}

// getAllTests returns all test entries in order
func getAllTests() []testEntry {
	return []testEntry{
		// Group 1: HTTP API
		{"Health", TestHealth},
		{"Rule Sets Listed", TestRuleSetsListed},
		{"Generate", TestGenerate},
		{"Generate Reproducible", TestGenerateReproducible},
		{"Generate Bad Size", TestGenerateBadSize},
		{"Saved Solution Round Trip", TestSavedSolutionRoundTrip},

		// Group 2: Sessions
		{"Session Initial State", TestSessionInitialState},
		{"Session Collapse", TestSessionCollapse},
		{"Session Full Collapse", TestSessionFullCollapse},
		{"Session Reset", TestSessionReset},
		{"Session Bad Command", TestSessionBadCommand},
		{"Session Unknown Rule Set", TestSessionUnknownRuleSet},
		{"Concurrent Sessions", TestConcurrentSessions},
	}
}

// GetTestNames returns the names of all available tests
func GetTestNames() []string {
	tests := getAllTests()
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = t.Name
	}
	return names
}

// RunAllTests runs every scenario against target
func RunAllTests(target Target) []TestResult {
	return RunFilteredTests(target, "")
}

// RunFilteredTests runs only tests whose names contain the filter string
// (case-insensitive). An empty filter runs everything.
func RunFilteredTests(target Target, filter string) []TestResult {
	results := make([]TestResult, 0)

	resolved, err := target.resolve()
	if err != nil {
		return append(results, fail("Setup", "Could not pick a rule set: %v", err))
	}
	logAction("Setup", fmt.Sprintf("Using rule set %q at %dx%d", resolved.RuleSet, resolved.Width, resolved.Height))

	filterLower := strings.ToLower(filter)
	for _, t := range getAllTests() {
		if strings.Contains(strings.ToLower(t.Name), filterLower) {
			results = append(results, t.Func(resolved))
		}
	}

	return results
}

// PrintResults prints all test results in a formatted way
func PrintResults(results []TestResult) {
	passed := 0
	failed := 0

	fmt.Println("============================================================")
	fmt.Println("Integration Test Results")
	fmt.Println("============================================================")
	fmt.Println()

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
	}

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
	fmt.Println("------------------------------------------------------------")
}
