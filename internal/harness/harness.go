package harness

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
	"github.com/roach88/affinity/internal/marshal"
	"github.com/roach88/affinity/internal/ownerthread"
	"github.com/roach88/affinity/internal/ui"
)

// Factory builds the node under test. It runs once, on the loop, with the
// window that will host the node.
type Factory[T ui.Node] func(app *ui.Application, window *ui.Window) (T, error)

// Harness drives a node that lives on its own owner thread.
//
// The node is never handed out. Callers reach it only inside Execute and
// Query callbacks, which run on the loop one at a time in submission
// order per caller.
//
// Thread-safety: all methods are safe for concurrent use.
type Harness[T ui.Node] struct {
	factory      Factory[T]
	thread       *ownerthread.Thread[*ui.Application]
	marshaller   *marshal.Marshaller
	logger       *slog.Logger
	readyTimeout time.Duration
	closeTimeout time.Duration

	mu    sync.Mutex
	state State

	// loop-owned
	node   T
	window *ui.Window
}

// New creates a harness. Nothing runs until Start.
func New[T ui.Node](factory Factory[T], opts ...Option) *Harness[T] {
	o := &options{
		name:         "harness",
		logger:       slog.Default(),
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	var loopOpts []loop.Option
	for _, obs := range o.observers {
		loopOpts = append(loopOpts, loop.WithObserver(obs))
	}

	logger := o.logger
	store := o.store
	threadOpts := []ownerthread.Option{
		ownerthread.WithName(o.name),
		ownerthread.WithLogger(logger),
		ownerthread.WithLoopOptions(loopOpts...),
	}
	for _, hook := range o.initHooks {
		threadOpts = append(threadOpts, ownerthread.WithInitHook(hook))
	}

	thread := ownerthread.New(func(l *loop.Loop) (*ui.Application, error) {
		return ui.NewApplication(l, ui.WithLogger(logger), ui.WithStore(store)), nil
	}, threadOpts...)

	return &Harness[T]{
		factory:      factory,
		thread:       thread,
		marshaller:   marshal.New(thread.Loop(), marshal.WithLogger(logger)),
		logger:       logger.With("harness", o.name),
		readyTimeout: o.readyTimeout,
		closeTimeout: o.closeTimeout,
		state:        StateCreated,
	}
}

// Start boots the owner thread and brings the node up.
//
// It waits up to timeout for the owner thread to signal readiness, then
// calls onReady (if non-nil) on the calling goroutine, then builds the
// window and the node on the loop, shows the window, and waits for the
// node's Loaded event.
//
// Start is one-shot: a second call fails with INVALID_STATE whatever the
// outcome of the first. A TIMEOUT leaves the owner thread running; Close
// reclaims it.
func (h *Harness[T]) Start(ctx context.Context, timeout time.Duration, onReady func(*ui.Application) error) error {
	h.mu.Lock()
	if h.state != StateCreated {
		state := h.state
		h.mu.Unlock()
		return failure.InvalidState("start", state.String())
	}
	h.state = StateStarting
	h.mu.Unlock()

	if err := h.start(ctx, timeout, onReady); err != nil {
		h.transition(StateStarting, StateFailed)
		h.logger.Warn("harness start failed", "error", err)
		return err
	}

	// a Close during start wins
	if !h.transition(StateStarting, StateReady) {
		return failure.InvalidState("start", h.State().String())
	}
	h.logger.Info("harness ready")
	return nil
}

func (h *Harness[T]) start(ctx context.Context, timeout time.Duration, onReady func(*ui.Application) error) error {
	if err := h.thread.Start(); err != nil {
		return err
	}
	if err := h.thread.WaitReady(timeout); err != nil {
		return err
	}

	app := h.thread.App()
	if onReady != nil {
		if err := onReady(app); err != nil {
			return fmt.Errorf("ready callback: %w", err)
		}
	}

	loaded, err := marshal.Query(h.marshaller, "construct node", func() (*ui.ReadyEvent, error) {
		window := ui.NewWindow(app, h.thread.Name())
		node, err := h.factory(app, window)
		if err != nil {
			return nil, fmt.Errorf("node factory: %w", err)
		}
		if isNilNode(node) {
			return nil, fmt.Errorf("node factory returned nil")
		}
		window.SetContent(node)
		if err := window.Show(); err != nil {
			return nil, err
		}
		h.window = window
		h.node = node
		return node.Loaded(), nil
	}).Get(ctx)
	if err != nil {
		return err
	}

	return h.awaitLoaded(ctx, loaded)
}

func (h *Harness[T]) awaitLoaded(ctx context.Context, loaded *ui.ReadyEvent) error {
	if loaded.IsReady() {
		return nil
	}
	if h.readyTimeout <= 0 {
		return loaded.Wait(ctx)
	}

	timer := time.NewTimer(h.readyTimeout)
	defer timer.Stop()

	select {
	case <-loaded.Done():
		return nil
	case <-timer.C:
		if loaded.IsReady() {
			return nil
		}
		return failure.ReadyTimeout("start", h.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition moves from one state to another and reports whether the
// harness was in from.
func (h *Harness[T]) transition(from, to State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return false
	}
	h.state = to
	return true
}

// State returns the lifecycle state.
func (h *Harness[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Harness[T]) requireReady(op string) error {
	if state := h.State(); state != StateReady {
		return failure.InvalidState(op, state.String())
	}
	return nil
}

// Execute runs fn with the node on the loop and waits for it. The error
// fn returns is returned as is; a panic in fn comes back as a
// *failure.PanicError. Neither stops the loop.
//
// Execute must not be called from inside a loop callback: the outer item
// holds the loop, so the inner wait never returns unless ctx ends.
func (h *Harness[T]) Execute(ctx context.Context, fn func(node T) error) error {
	return h.ExecuteLabeled(ctx, "execute", fn)
}

// ExecuteLabeled is Execute with a label that names the work item in logs
// and the journal.
func (h *Harness[T]) ExecuteLabeled(ctx context.Context, label string, fn func(node T) error) error {
	if err := h.requireReady("execute"); err != nil {
		return err
	}
	return h.marshaller.Post(label, func() error {
		return fn(h.node)
	}).Wait(ctx)
}

// ExecuteWithApp runs fn with the application on the loop and waits for
// it.
func (h *Harness[T]) ExecuteWithApp(ctx context.Context, fn func(app *ui.Application) error) error {
	if err := h.requireReady("execute"); err != nil {
		return err
	}
	app := h.thread.App()
	return h.marshaller.Post("execute with app", func() error {
		return fn(app)
	}).Wait(ctx)
}

// Query runs fn with the node on the loop and returns what it produced.
// The value is only returned once fn has run to completion.
func Query[T ui.Node, R any](ctx context.Context, h *Harness[T], fn func(node T) (R, error)) (R, error) {
	return QueryLabeled(ctx, h, "query", fn)
}

// QueryLabeled is Query with a label for logs and the journal.
func QueryLabeled[T ui.Node, R any](ctx context.Context, h *Harness[T], label string, fn func(node T) (R, error)) (R, error) {
	if err := h.requireReady("query"); err != nil {
		var zero R
		return zero, err
	}
	return marshal.Query(h.marshaller, label, func() (R, error) {
		return fn(h.node)
	}).Get(ctx)
}

// Close shuts the application down on the loop and stops the owner
// thread. It is safe to call in any state and more than once.
func (h *Harness[T]) Close() error {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return nil
	}
	h.state = StateClosed
	h.mu.Unlock()

	if app := h.thread.App(); app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.closeTimeout)
		err := h.marshaller.Post("shutdown", func() error {
			app.Shutdown()
			return nil
		}).Wait(ctx)
		cancel()
		if err != nil && !failure.IsLoopClosed(err) {
			h.logger.Warn("application shutdown did not complete", "error", err)
		}
	}

	h.thread.Stop()
	if !h.thread.Wait(h.closeTimeout) {
		return fmt.Errorf("close harness: owner thread still %s after %s", h.thread.State(), h.closeTimeout)
	}
	h.logger.Debug("harness closed")
	return nil
}

// isNilNode catches typed nils such as (*ui.UserControl)(nil) too.
func isNilNode(n ui.Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
