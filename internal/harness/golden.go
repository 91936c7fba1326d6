package harness

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/affinity/internal/canon"
)

// GoldenDir is where RunWithGolden and AssertGolden keep golden files,
// relative to the test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot renders the trace of result as canonical JSON. Two runs of the
// same scenario produce the same bytes.
func Snapshot(result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		m := map[string]any{
			"seq":    event.Seq,
			"action": event.Action,
		}
		if event.Target != "" {
			m["target"] = event.Target
		}
		if event.State != nil {
			m["state"] = event.State
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		trace[i] = m
	}

	return canon.Marshal(map[string]any{
		"scenario": result.Scenario,
		"pass":     result.Pass,
		"trace":    trace,
	})
}

// Digest is the content hash of a result's snapshot.
func Digest(result *Result) (string, error) {
	data, err := Snapshot(result)
	if err != nil {
		return "", err
	}
	return canon.Digest(canon.DomainTrace, string(data))
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) error {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// ScenarioDigest hashes what a scenario does: its fixture, timeouts and
// steps. Name, description and assertions are left out, so renaming a
// scenario or tightening its checks keeps the digest.
func ScenarioDigest(s *Scenario) (string, error) {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		m := map[string]any{"action": step.Action}
		if step.Target != "" {
			m["target"] = step.Target
		}
		if step.Verifier != "" {
			m["verifier"] = step.Verifier
		}
		if step.Enabled != nil {
			m["enabled"] = *step.Enabled
		}
		if step.Expect != nil {
			m["expect"] = expectMap(step.Expect)
		}
		steps[i] = m
	}

	return canon.Digest(canon.DomainScenario, map[string]any{
		"fixture":         s.Fixture,
		"startup_timeout": time.Duration(s.StartupTimeout).String(),
		"ready_timeout":   time.Duration(s.ReadyTimeout).String(),
		"steps":           steps,
	})
}

func expectMap(e *ExpectClause) map[string]any {
	m := map[string]any{}
	if e.Enabled != nil {
		m["enabled"] = *e.Enabled
	}
	if e.Verifier != nil {
		m["verifier"] = *e.Verifier
	}
	if e.Clicks != nil {
		m["clicks"] = *e.Clicks
	}
	if e.Loaded != nil {
		m["loaded"] = *e.Loaded
	}
	return m
}
