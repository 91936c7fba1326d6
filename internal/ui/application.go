package ui

import (
	"log/slog"
	"slices"

	"github.com/roach88/affinity/internal/attached"
)

// Dispatcher queues work on the loop that owns an Application.
// *loop.Loop implements it.
type Dispatcher interface {
	Enqueue(label string, fn func() error) (int64, error)
}

// Application is the root context of a tree: it owns the dispatcher, the
// attached-property store and the windows.
type Application struct {
	dispatcher Dispatcher
	props      *attached.Store
	resources  map[string]any
	windows    []*Window
	logger     *slog.Logger
	shutdown   bool
}

// AppOption configures an Application.
type AppOption func(*Application)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AppOption {
	return func(a *Application) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStore uses s as the attached-property store instead of a fresh one.
func WithStore(s *attached.Store) AppOption {
	return func(a *Application) {
		if s != nil {
			a.props = s
		}
	}
}

// NewApplication creates an application bound to d.
func NewApplication(d Dispatcher, opts ...AppOption) *Application {
	a := &Application{
		dispatcher: d,
		props:      attached.NewStore(),
		resources:  make(map[string]any),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dispatcher returns the dispatcher.
func (a *Application) Dispatcher() Dispatcher { return a.dispatcher }

// Attached returns the attached-property store.
func (a *Application) Attached() *attached.Store { return a.props }

// Resource looks up an application resource.
func (a *Application) Resource(key string) (any, bool) {
	v, ok := a.resources[key]
	return v, ok
}

// SetResource stores an application resource.
func (a *Application) SetResource(key string, value any) {
	a.resources[key] = value
}

// Windows returns the open windows in creation order.
func (a *Application) Windows() []*Window {
	return slices.Clone(a.windows)
}

// MainWindow returns the first window, or nil.
func (a *Application) MainWindow() *Window {
	if len(a.windows) == 0 {
		return nil
	}
	return a.windows[0]
}

// Shutdown closes every window and clears the attached store.
func (a *Application) Shutdown() {
	if a.shutdown {
		return
	}
	a.shutdown = true
	for _, w := range a.windows {
		w.shown = false
	}
	a.windows = nil
	a.props.Reset()
	a.logger.Debug("application shut down")
}

// IsShutdown reports whether Shutdown has been called.
func (a *Application) IsShutdown() bool { return a.shutdown }
