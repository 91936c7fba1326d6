// Package ownerthread runs a dedicated OS thread whose only job is to run a
// loop.Loop for its whole lifetime.
//
// The thread builds the application (root) context on itself, signals
// readiness, then hands control to the loop. Everything the application
// owns must from then on be touched only through loop work items.
package ownerthread

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
	"github.com/roach88/affinity/internal/signal"
)

// AppFactory builds the application context. It runs on the owner thread
// before readiness is signalled.
type AppFactory[A any] func(l *loop.Loop) (A, error)

// Thread owns one loop and the application built on it.
type Thread[A any] struct {
	name      string
	state     *threadState
	loop      *loop.Loop
	newApp    AppFactory[A]
	initHooks []func()
	logger    *slog.Logger
	ready     *signal.Signal

	// written on the owner thread before ready is set
	app      A
	startErr error

	ctx    context.Context
	cancel context.CancelFunc
}

type options struct {
	name      string
	logger    *slog.Logger
	loopOpts  []loop.Option
	initHooks []func()
}

// Option configures a Thread.
type Option func(*options)

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger for the thread and its loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLoopOptions passes options through to the owned loop.
func WithLoopOptions(opts ...loop.Option) Option {
	return func(o *options) {
		o.loopOpts = append(o.loopOpts, opts...)
	}
}

// WithInitHook registers a function run on the owner thread before the
// application is built. Hooks run in registration order.
func WithInitHook(hook func()) Option {
	return func(o *options) {
		if hook != nil {
			o.initHooks = append(o.initHooks, hook)
		}
	}
}

// New creates a thread that is not started yet.
func New[A any](newApp AppFactory[A], opts ...Option) *Thread[A] {
	o := &options{
		name:   "owner",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger.With("thread", o.name)
	loopOpts := append([]loop.Option{loop.WithLogger(logger)}, o.loopOpts...)

	ctx, cancel := context.WithCancel(context.Background())

	return &Thread[A]{
		ctx:       ctx,
		cancel:    cancel,
		name:      o.name,
		state:     newThreadState(),
		loop:      loop.New(loopOpts...),
		newApp:    newApp,
		initHooks: o.initHooks,
		logger:    logger,
		ready:     signal.New(),
	}
}

// Start spawns the owner thread. It does not wait for readiness; use
// WaitReady or Ready for that.
//
// Start is one-shot: any call after the first fails with INVALID_STATE,
// whatever the thread is doing.
func (t *Thread[A]) Start() error {
	if !t.state.compareAndSwap(stateNotStarted, stateBooting) {
		return failure.InvalidState("start", t.state.name())
	}

	go t.run(t.ctx)
	return nil
}

func (t *Thread[A]) run(ctx context.Context) {
	// the goroutine is the thread for its whole life
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer t.state.set(stateStopped)

	t.logger.Debug("owner thread booting")

	for _, hook := range t.initHooks {
		hook()
	}

	app, err := t.newApp(t.loop)
	if err != nil {
		t.startErr = fmt.Errorf("initialize application: %w", err)
		t.logger.Error("owner thread failed to initialize", "error", err)
		t.ready.Set()
		t.failPending()
		return
	}
	t.app = app

	// a Stop during boot already moved us to stopping; keep that
	t.state.compareAndSwap(stateBooting, stateRunning)
	t.ready.Set()
	t.logger.Info("owner thread ready")

	if err := t.loop.Run(ctx); err != nil && err != context.Canceled {
		t.logger.Error("loop exited with error", "error", err)
	}
	t.logger.Info("owner thread stopped", "executed", t.loop.Executed())
}

// failPending abandons work queued against a loop that will never run.
func (t *Thread[A]) failPending() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = t.loop.Run(ctx)
}

// Ready returns the readiness signal. It is set once the application is
// built (or failed to build) and the loop is about to run.
func (t *Thread[A]) Ready() *signal.Signal {
	return t.ready
}

// WaitReady blocks until readiness or until timeout elapses.
// Returns a TIMEOUT error carrying the bound, or the application
// construction error. The thread is left running on timeout.
func (t *Thread[A]) WaitReady(timeout time.Duration) error {
	if !t.ready.Wait(timeout) {
		return failure.Timeout("start", timeout)
	}
	return t.startErr
}

// App returns the application context. The zero value is returned until
// the thread has signalled readiness successfully.
func (t *Thread[A]) App() A {
	if !t.ready.IsSet() || t.startErr != nil {
		var zero A
		return zero
	}
	return t.app
}

// Loop returns the owned loop. Work may be enqueued before readiness; it
// runs once the loop starts.
func (t *Thread[A]) Loop() *loop.Loop {
	return t.loop
}

// Name returns the thread name.
func (t *Thread[A]) Name() string {
	return t.name
}

// State returns the lifecycle state name.
func (t *Thread[A]) State() string {
	return t.state.name()
}

// Stop asks the loop to finish its queued work and exit. A thread that was
// never started moves straight to stopped. Stop does not wait; a work item
// that never returns keeps the thread alive.
func (t *Thread[A]) Stop() {
	if t.state.compareAndSwap(stateNotStarted, stateStopped) {
		t.failPending()
		return
	}
	if !t.state.compareAndSwap(stateRunning, stateStopping) {
		t.state.compareAndSwap(stateBooting, stateStopping)
	}
	t.loop.Stop()
}

// Kill cancels the loop: queued work is abandoned with LOOP_CLOSED.
func (t *Thread[A]) Kill() {
	t.Stop()
	t.cancel()
}

// Wait blocks until the thread has stopped or timeout elapses.
// Returns false on timeout.
func (t *Thread[A]) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	stopped := t.state.reached(stateStopped)
	select {
	case <-stopped:
		return true
	case <-timer.C:
		t.state.forget(stopped)
		return t.state.is(stateStopped)
	}
}
