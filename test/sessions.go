package test

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/tilecollapse/internal/server"
	"github.com/lawnchairsociety/tilecollapse/internal/testclient"
)

// =============================================================================
// Group 2: Sessions
// =============================================================================

const replyTimeout = 5 * time.Second

func (t Target) open(name string, seed int64) (*testclient.TestClient, error) {
	return testclient.NewTestClient(name, t.Addr, testclient.SessionParams{
		RuleSet: t.RuleSet,
		Width:   t.Width,
		Height:  t.Height,
		Seed:    seed,
	})
}

// TestSessionInitialState checks a new session starts with every cell open
func TestSessionInitialState(t Target) TestResult {
	const testName = "Session Initial State"

	logAction(testName, "Opening session")
	client, err := t.open(testName, 7)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	state, ok := client.WaitForReply(server.CmdState, replyTimeout)
	if !ok {
		return fail(testName, "No initial state")
	}
	logResult(testName, state.OK, fmt.Sprintf("%d/%d solved", state.Solved, state.Total))

	if state.Total != t.Width*t.Height {
		return fail(testName, "Total = %d, want %d", state.Total, t.Width*t.Height)
	}
	if len(state.Contradictions) != 0 {
		return fail(testName, "Fresh grid reports %d contradictions", len(state.Contradictions))
	}
	return pass(testName, "%d cells, %d solved", state.Total, state.Solved)
}

// TestSessionCollapse collapses the top-left cell
func TestSessionCollapse(t Target) TestResult {
	const testName = "Session Collapse"

	client, err := t.open(testName, 7)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	logAction(testName, "Collapsing (0,0)")
	reply, err := client.Do(&server.Command{Type: server.CmdCollapse, X: 0, Y: 0}, replyTimeout)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !reply.OK {
		return fail(testName, "Collapse failed: %s", reply.Error)
	}
	if reply.Solved < 1 {
		return fail(testName, "No cell solved after collapse")
	}
	return pass(testName, "%d/%d solved after one collapse", reply.Solved, reply.Total)
}

// TestSessionFullCollapse checks full_collapse leaves no open cells
func TestSessionFullCollapse(t Target) TestResult {
	const testName = "Session Full Collapse"

	client, err := t.open(testName, 7)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	reply, err := client.Do(&server.Command{Type: server.CmdFullCollapse}, replyTimeout)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !reply.OK {
		return fail(testName, "Full collapse failed: %s", reply.Error)
	}
	if strings.ContainsRune(reply.Render, '?') {
		return fail(testName, "Open cells remain:\n%s", reply.Render)
	}
	return pass(testName, "%d solved, %d contradictions", reply.Solved, len(reply.Contradictions))
}

// TestSessionReset checks reset reopens every cell
func TestSessionReset(t Target) TestResult {
	const testName = "Session Reset"

	client, err := t.open(testName, 7)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	if _, err := client.Do(&server.Command{Type: server.CmdFullCollapse}, replyTimeout); err != nil {
		return fail(testName, "%v", err)
	}
	reply, err := client.Do(&server.Command{Type: server.CmdReset}, replyTimeout)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !reply.OK || len(reply.Contradictions) != 0 || strings.ContainsRune(reply.Render, '!') {
		return fail(testName, "Grid not reset:\n%s", reply.Render)
	}
	return pass(testName, "Grid reset")
}

// TestSessionBadCommand checks malformed input gets an error reply and the
// session keeps working
func TestSessionBadCommand(t Target) TestResult {
	const testName = "Session Bad Command"

	client, err := t.open(testName, 7)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	client.ClearReplies()
	logAction(testName, "Sending malformed JSON")
	if err := client.SendRaw("{not json"); err != nil {
		return fail(testName, "Send failed: %v", err)
	}
	reply, ok := client.WaitForReply("error", replyTimeout)
	if !ok {
		return fail(testName, "No error reply for malformed command")
	}
	logResult(testName, !reply.OK, reply.Error)

	if _, err := client.Do(&server.Command{Type: server.CmdState}, replyTimeout); err != nil {
		return fail(testName, "Session unusable after bad command: %v", err)
	}
	return pass(testName, "Rejected with %q", reply.Error)
}

// TestSessionUnknownRuleSet checks the handshake refuses unknown rule sets
func TestSessionUnknownRuleSet(t Target) TestResult {
	const testName = "Session Unknown Rule Set"

	client, err := testclient.NewTestClientRaw(testName, t.Addr, testclient.SessionParams{
		RuleSet: "no-such-ruleset",
		Width:   t.Width,
		Height:  t.Height,
	})
	if err == nil {
		client.Close()
		return fail(testName, "Handshake succeeded for an unknown rule set")
	}
	return pass(testName, "Refused: %v", err)
}

// TestConcurrentSessions runs several sessions with the same seed at once
// and checks they produce the same grid
func TestConcurrentSessions(t Target) TestResult {
	const testName = "Concurrent Sessions"
	const sessions = 2

	renders := make([]string, sessions)
	errs := make([]error, sessions)

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := t.open(fmt.Sprintf("%s %d", testName, i), 2024)
			if err != nil {
				errs[i] = err
				return
			}
			defer client.Close()

			reply, err := client.Do(&server.Command{Type: server.CmdFullCollapse}, replyTimeout)
			if err != nil {
				errs[i] = err
				return
			}
			renders[i] = reply.Render
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fail(testName, "Session %d: %v", i, err)
		}
	}
	for i := 1; i < sessions; i++ {
		if renders[i] != renders[0] {
			return fail(testName, "Session %d diverged from session 0", i)
		}
	}
	return pass(testName, "%d sessions agreed", sessions)
}
