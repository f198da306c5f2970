package test

import (
	"fmt"
	"net/http"
)

// =============================================================================
// Group 1: HTTP API
// =============================================================================

type generateRequest struct {
	RuleSet             string `json:"ruleset"`
	Width               int    `json:"width"`
	Height              int    `json:"height"`
	Seed                int64  `json:"seed"`
	AllowContradictions bool   `json:"allow_contradictions"`
	Save                bool   `json:"save"`
	Name                string `json:"name,omitempty"`
}

type generateResponse struct {
	ID       int64  `json:"id"`
	Seed     int64  `json:"seed"`
	Attempts int    `json:"attempts"`
	Render   string `json:"render"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (t Target) generate(seed int64, save bool, name string) (int, generateResponse, error) {
	var out generateResponse
	status, err := doJSON(http.MethodPost, t.url("/api/solutions"), generateRequest{
		RuleSet:             t.RuleSet,
		Width:               t.Width,
		Height:              t.Height,
		Seed:                seed,
		AllowContradictions: true,
		Save:                save,
		Name:                name,
	}, &out)
	return status, out, err
}

// TestHealth checks the health endpoint answers
func TestHealth(t Target) TestResult {
	const testName = "Health"

	var health struct {
		Status   string `json:"status"`
		RuleSets int    `json:"rulesets"`
		Storage  bool   `json:"storage"`
	}
	logAction(testName, "GET /health")
	status, err := doJSON(http.MethodGet, t.url("/health"), nil, &health)
	if err != nil {
		return fail(testName, "Request failed: %v", err)
	}
	logResult(testName, status == http.StatusOK, fmt.Sprintf("status %d, body %+v", status, health))

	if status != http.StatusOK || health.Status != "ok" {
		return fail(testName, "Unexpected answer: status %d, %q", status, health.Status)
	}
	return pass(testName, "%d rule sets, storage=%v", health.RuleSets, health.Storage)
}

// TestRuleSetsListed checks the chosen rule set can be described
func TestRuleSetsListed(t Target) TestResult {
	const testName = "Rule Sets Listed"

	var detail ruleSetInfo
	logAction(testName, "GET /api/rulesets/"+t.RuleSet)
	status, err := doJSON(http.MethodGet, t.url("/api/rulesets/"+t.RuleSet), nil, &detail)
	if err != nil {
		return fail(testName, "Request failed: %v", err)
	}
	if status != http.StatusOK {
		return fail(testName, "Status %d for rule set %q", status, t.RuleSet)
	}
	if len(detail.Identifiers) == 0 {
		return fail(testName, "Rule set %q has no tiles", t.RuleSet)
	}
	return pass(testName, "%q has %d tiles", detail.Name, len(detail.Identifiers))
}

// TestGenerate checks a one-shot generation returns a full render
func TestGenerate(t Target) TestResult {
	const testName = "Generate"

	logAction(testName, fmt.Sprintf("Generating %dx%d", t.Width, t.Height))
	status, out, err := t.generate(0, false, "")
	if err != nil {
		return fail(testName, "Request failed: %v", err)
	}
	if status != http.StatusOK {
		return fail(testName, "Status %d", status)
	}
	want := (t.Width + 1) * t.Height
	if len([]rune(out.Render)) != want {
		return fail(testName, "Render has %d runes, want %d", len([]rune(out.Render)), want)
	}
	return pass(testName, "Seed %d solved in %d attempts", out.Seed, out.Attempts)
}

// TestGenerateReproducible checks the same seed gives the same grid
func TestGenerateReproducible(t Target) TestResult {
	const testName = "Generate Reproducible"

	_, first, err := t.generate(1234, false, "")
	if err != nil {
		return fail(testName, "First request failed: %v", err)
	}
	_, second, err := t.generate(1234, false, "")
	if err != nil {
		return fail(testName, "Second request failed: %v", err)
	}
	logResult(testName, first.Render == second.Render, "Comparing renders for seed 1234")

	if first.Render != second.Render {
		return fail(testName, "Seed 1234 gave different grids:\n%s\n%s", first.Render, second.Render)
	}
	return pass(testName, "Seed 1234 is stable")
}

// TestGenerateBadSize checks invalid dimensions are rejected
func TestGenerateBadSize(t Target) TestResult {
	const testName = "Generate Bad Size"

	var e errorResponse
	status, err := doJSON(http.MethodPost, t.url("/api/solutions"), generateRequest{
		RuleSet: t.RuleSet, Width: 0, Height: t.Height,
	}, &e)
	if err != nil {
		return fail(testName, "Request failed: %v", err)
	}
	if status != http.StatusBadRequest || e.Error != "invalid_size" {
		return fail(testName, "Got status %d error %q, want 400 invalid_size", status, e.Error)
	}
	return pass(testName, "Zero width rejected")
}

// TestSavedSolutionRoundTrip saves, fetches and deletes a solution
func TestSavedSolutionRoundTrip(t Target) TestResult {
	const testName = "Saved Solution Round Trip"

	name := uniqueName("roundtrip")
	logAction(testName, fmt.Sprintf("Saving as %q", name))
	status, created, err := t.generate(99, true, name)
	if err != nil {
		return fail(testName, "Save failed: %v", err)
	}
	if status == http.StatusServiceUnavailable {
		return pass(testName, "Storage disabled on server, skipped")
	}
	if status != http.StatusCreated || created.ID == 0 {
		return fail(testName, "Save answered %d with id %d", status, created.ID)
	}

	solutionURL := t.url(fmt.Sprintf("/api/solutions/%d", created.ID))
	var got struct {
		Name   string `json:"name"`
		Render string `json:"render"`
	}
	status, err = doJSON(http.MethodGet, solutionURL, nil, &got)
	if err != nil || status != http.StatusOK {
		return fail(testName, "Fetch answered %d: %v", status, err)
	}
	if got.Name != name || got.Render != created.Render {
		return fail(testName, "Fetched solution differs from the saved one")
	}

	logAction(testName, fmt.Sprintf("Deleting %d", created.ID))
	status, err = doJSON(http.MethodDelete, solutionURL, nil, nil)
	if err != nil || status != http.StatusNoContent {
		return fail(testName, "Delete answered %d: %v", status, err)
	}
	status, _ = doJSON(http.MethodGet, solutionURL, nil, nil)
	if status != http.StatusNotFound {
		return fail(testName, "Deleted solution still answers %d", status)
	}
	return pass(testName, "Solution %d saved, fetched and deleted", created.ID)
}
