package harness

import (
	"log/slog"
	"time"

	"github.com/roach88/affinity/internal/attached"
	"github.com/roach88/affinity/internal/loop"
)

// DefaultCloseTimeout bounds how long Close waits for the owner thread.
const DefaultCloseTimeout = 5 * time.Second

type options struct {
	name         string
	logger       *slog.Logger
	readyTimeout time.Duration
	closeTimeout time.Duration
	observers    []loop.Observer
	initHooks    []func()
	store        *attached.Store
}

// Option configures a Harness.
type Option func(*options)

// WithName names the owner thread in logs.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger for the harness, its thread and its loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadyTimeout bounds the wait for the node's Loaded event during
// Start. Zero waits without bound (subject to the Start context).
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readyTimeout = d
	}
}

// WithCloseTimeout bounds how long Close waits for the owner thread.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// WithObserver reports every loop work item to obs.
func WithObserver(obs loop.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithInitHook runs hook on the owner thread before the application is
// built.
func WithInitHook(hook func()) Option {
	return func(o *options) {
		if hook != nil {
			o.initHooks = append(o.initHooks, hook)
		}
	}
}

// WithStore backs the application's attached properties with s.
func WithStore(s *attached.Store) Option {
	return func(o *options) {
		o.store = s
	}
}
