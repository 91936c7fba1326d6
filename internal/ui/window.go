package ui

import (
	"fmt"
)

// Window is a top-level container with a single content node.
type Window struct {
	Element
	title   string
	content Node
	shown   bool
}

// NewWindow creates a hidden window and registers it with app.
func NewWindow(app *Application, title string) *Window {
	w := &Window{
		Element: NewElement(app, ""),
		title:   title,
	}
	app.windows = append(app.windows, w)
	return w
}

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// Content returns the hosted node, or nil.
func (w *Window) Content() Node { return w.content }

// SetContent replaces the hosted node.
func (w *Window) SetContent(n Node) {
	detach(w.content)
	w.content = n
	attach(w, n)
}

// Children returns the content as a one-element list.
func (w *Window) Children() []Node {
	if w.content == nil {
		return nil
	}
	return []Node{w.content}
}

// IsShown reports whether Show has been called.
func (w *Window) IsShown() bool { return w.shown }

// Show makes the window visible. The load pass, which raises Loaded on
// the window and everything in it, is queued on the application's
// dispatcher and runs after the current work item. Showing twice is a
// no-op.
func (w *Window) Show() error {
	if w.shown {
		return nil
	}
	if w.app.IsShutdown() {
		return fmt.Errorf("show window %q: application is shut down", w.title)
	}
	w.shown = true

	_, err := w.app.dispatcher.Enqueue("load window "+w.title, func() error {
		load(w)
		w.app.logger.Debug("window loaded", "title", w.title)
		return nil
	})
	if err != nil {
		w.shown = false
		return fmt.Errorf("show window %q: %w", w.title, err)
	}
	return nil
}

// Close hides the window and unregisters it.
func (w *Window) Close() {
	w.shown = false
	for i, other := range w.app.windows {
		if other == w {
			w.app.windows = append(w.app.windows[:i], w.app.windows[i+1:]...)
			break
		}
	}
}
