// Package harness drives a node that lives on a dedicated owner thread.
//
// A Harness owns one ownerthread.Thread. Start performs the handshake:
// the owner thread builds the ui.Application and signals readiness, the
// caller's ready callback runs, then the window and node are constructed
// on the loop and the harness waits for the node's Loaded event. After
// that the node is reachable only through Execute, ExecuteWithApp and
// Query, each of which runs one work item on the loop and hands its
// error (or value) back to the caller.
//
//	h := harness.New(func(app *ui.Application, w *ui.Window) (*ui.UserControl, error) {
//	    return buildControl(app), nil
//	})
//	defer h.Close()
//
//	if err := h.Start(ctx, 10*time.Second, nil); err != nil {
//	    return err
//	}
//	enabled, err := harness.Query(ctx, h, func(c *ui.UserControl) (bool, error) {
//	    b, _ := ui.FindChild[*ui.Button](c, "testButton")
//	    return b.IsEnabled(), nil
//	})
//
// # Scenario Format
//
// Scenarios script a session against a registered fixture:
//
//	name: verifier_toggle
//	description: "Enablement follows the verifier"
//	fixture: verifier-button
//	startup_timeout: 10s
//	steps:
//	  - action: expect
//	    target: testButton
//	    expect: { enabled: true }
//	  - action: clear_verifier
//	    target: testButton
//	    expect: { enabled: false }
//	assertions:
//	  - type: trace_count
//	    action: clear_verifier
//	    count: 1
//
// Step actions: find, set_verifier, clear_verifier, reset_verifier,
// set_enabled, click, expect. Assertion types: trace_contains,
// trace_order, trace_count, final_state.
//
// Run executes a scenario on a fresh Harness; ValidateScenario checks a
// file against the CUE schema in scenario.cue. Golden traces are compared
// with RunWithGolden.
package harness
