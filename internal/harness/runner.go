package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/affinity/internal/loop"
	"github.com/roach88/affinity/internal/testutil"
	"github.com/roach88/affinity/internal/ui"
)

// DefaultStartupTimeout applies when a scenario sets no startup_timeout.
const DefaultStartupTimeout = 10 * time.Second

type runConfig struct {
	logger         *slog.Logger
	observers      []loop.Observer
	startupTimeout time.Duration
	readyTimeout   time.Duration
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithRunLogger sets the logger used by the scenario's harness.
func WithRunLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRunObserver reports the scenario's loop work items to obs.
func WithRunObserver(obs loop.Observer) RunOption {
	return func(c *runConfig) {
		if obs != nil {
			c.observers = append(c.observers, obs)
		}
	}
}

// WithTimeouts sets timeouts used when the scenario does not set its own.
func WithTimeouts(startup, ready time.Duration) RunOption {
	return func(c *runConfig) {
		if startup > 0 {
			c.startupTimeout = startup
		}
		if ready > 0 {
			c.readyTimeout = ready
		}
	}
}

// Run executes a scenario on a fresh harness and returns the result.
//
// Execution flow:
// 1. Start a harness for the scenario's fixture
// 2. Run each step as one loop work item, recording the target's state
// 3. Check step expectations, then the trace assertions
// 4. Close the harness
//
// Step and assertion failures are reported in the Result. The error is
// reserved for scenarios that could not run at all.
func Run(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{
		logger:         slog.Default(),
		startupTimeout: DefaultStartupTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if scenario.StartupTimeout > 0 {
		cfg.startupTimeout = time.Duration(scenario.StartupTimeout)
	}
	if scenario.ReadyTimeout > 0 {
		cfg.readyTimeout = time.Duration(scenario.ReadyTimeout)
	}

	fixture, ok := LookupFixture(scenario.Fixture)
	if !ok {
		return nil, fmt.Errorf("unknown fixture %q", scenario.Fixture)
	}

	hopts := []Option{
		WithName(scenario.Name),
		WithLogger(cfg.logger),
		WithReadyTimeout(cfg.readyTimeout),
	}
	for _, obs := range cfg.observers {
		hopts = append(hopts, WithObserver(obs))
	}

	h := New(fixture, hopts...)
	defer func() {
		if err := h.Close(); err != nil {
			cfg.logger.Warn("failed to close harness", "scenario", scenario.Name, "error", err)
		}
	}()

	if err := h.Start(ctx, cfg.startupTimeout, nil); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", scenario.Fixture, err)
	}

	clock := testutil.NewDeterministicClock()
	result := NewResult(scenario.Name)

	for i, step := range scenario.Steps {
		ev := TraceEvent{
			Seq:    clock.Next(),
			Action: step.Action,
			Target: step.Target,
		}

		label := fmt.Sprintf("step %d: %s", i+1, step.Action)
		state, err := QueryLabeled(ctx, h, label, func(root ui.Node) (map[string]any, error) {
			return applyStep(root, step)
		})
		if err != nil {
			ev.Error = err.Error()
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Action, err))
			var rejected *stepError
			if errors.As(err, &rejected) {
				state = rejected.state
			}
		}
		ev.State = state
		result.AddTrace(ev)

		if err == nil && step.Expect != nil {
			for _, msg := range checkExpect(state, step.Expect) {
				result.AddError(fmt.Sprintf("steps[%d] expect %s: %s", i, describeTarget(step.Target), msg))
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// stepError is a rejected step that still carries the target's state,
// since a failed query hands back no value.
type stepError struct {
	state map[string]any
	err   error
}

func (e *stepError) Error() string { return e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

// applyStep runs on the loop.
func applyStep(root ui.Node, step Step) (map[string]any, error) {
	button, ok := ui.FindChild[*ui.Button](root, step.Target)
	if !ok {
		return nil, fmt.Errorf("button %s not found", describeTarget(step.Target))
	}

	switch step.Action {
	case ActionSetVerifier:
		if err := ui.SetVerifier(button, &ui.Verifier{Name: step.Verifier}); err != nil {
			return nil, err
		}
	case ActionClearVerifier:
		if err := ui.SetVerifier(button, nil); err != nil {
			return nil, err
		}
	case ActionResetVerifier:
		ui.ClearVerifier(button)
	case ActionSetEnabled:
		button.SetEnabled(*step.Enabled)
	case ActionClick:
		if !button.Click() {
			return nil, &stepError{
				state: snapshot(button),
				err:   fmt.Errorf("button %s is disabled", describeTarget(step.Target)),
			}
		}
	case ActionFind, ActionExpect:
	default:
		return nil, fmt.Errorf("unknown action %q", step.Action)
	}

	return snapshot(button), nil
}

func snapshot(b *ui.Button) map[string]any {
	verifier := ""
	if v := ui.GetVerifier(b); v != nil {
		verifier = v.Name
	}
	return map[string]any{
		"name":     b.Name(),
		"enabled":  b.IsEnabled(),
		"verifier": verifier,
		"clicks":   b.Clicks(),
		"loaded":   b.IsLoaded(),
	}
}

func checkExpect(state map[string]any, e *ExpectClause) []string {
	var msgs []string
	check := func(field string, want any) {
		if got := state[field]; got != want {
			msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
		}
	}
	if e.Enabled != nil {
		check("enabled", *e.Enabled)
	}
	if e.Verifier != nil {
		check("verifier", *e.Verifier)
	}
	if e.Clicks != nil {
		check("clicks", *e.Clicks)
	}
	if e.Loaded != nil {
		check("loaded", *e.Loaded)
	}
	return msgs
}

func describeTarget(target string) string {
	if target == "" {
		return "(first)"
	}
	return fmt.Sprintf("%q", target)
}
