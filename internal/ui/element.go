package ui

import "slices"

// Node is an element of the tree. Implementations embed Element.
type Node interface {
	Name() string
	Children() []Node
	Loaded() *ReadyEvent
	base() *Element
}

// Element holds what every node has: a name, the owning application, a
// parent and the Loaded event.
type Element struct {
	name   string
	app    *Application
	parent Node
	loaded *ReadyEvent
}

// NewElement initializes the embedded Element of a custom node.
func NewElement(app *Application, name string) Element {
	return Element{
		name:   name,
		app:    app,
		loaded: NewReadyEvent(),
	}
}

// Name returns the element name. It may be empty.
func (e *Element) Name() string { return e.name }

// App returns the owning application.
func (e *Element) App() *Application { return e.app }

// Parent returns the parent node, nil for roots and detached elements.
func (e *Element) Parent() Node { return e.parent }

// Loaded returns the element's Loaded event.
func (e *Element) Loaded() *ReadyEvent { return e.loaded }

// IsLoaded reports whether Loaded has been raised.
func (e *Element) IsLoaded() bool { return e.loaded.IsReady() }

// Children returns nil; containers override it.
func (e *Element) Children() []Node { return nil }

func (e *Element) base() *Element { return e }

// attach parents child under parent, loading it if parent already is.
func attach(parent, child Node) {
	if child == nil {
		return
	}
	child.base().parent = parent
	if parent.base().loaded.IsReady() {
		load(child)
	}
}

func detach(child Node) {
	if child != nil {
		child.base().parent = nil
	}
}

// load raises Loaded on n and its descendants, parents first. It raises
// the element's own event even if a node overrides Loaded.
func load(n Node) {
	n.base().loaded.Raise()
	for _, c := range n.Children() {
		load(c)
	}
}

// Panel hosts any number of children.
type Panel struct {
	Element
	children []Node
}

// NewPanel creates an empty panel.
func NewPanel(app *Application, name string) *Panel {
	return &Panel{Element: NewElement(app, name)}
}

// Add appends children in order.
func (p *Panel) Add(children ...Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		p.children = append(p.children, c)
		attach(p, c)
	}
}

// Remove detaches child. It reports whether child was present.
func (p *Panel) Remove(child Node) bool {
	i := slices.Index(p.children, child)
	if i < 0 {
		return false
	}
	p.children = slices.Delete(p.children, i, i+1)
	detach(child)
	return true
}

// Children returns a copy of the child list.
func (p *Panel) Children() []Node {
	return slices.Clone(p.children)
}

// UserControl hosts a single content node.
type UserControl struct {
	Element
	content Node
}

// NewUserControl creates a control with no content.
func NewUserControl(app *Application, name string) *UserControl {
	return &UserControl{Element: NewElement(app, name)}
}

// SetContent replaces the content.
func (u *UserControl) SetContent(n Node) {
	detach(u.content)
	u.content = n
	attach(u, n)
}

// Content returns the content, or nil.
func (u *UserControl) Content() Node { return u.content }

// Children returns the content as a one-element list.
func (u *UserControl) Children() []Node {
	if u.content == nil {
		return nil
	}
	return []Node{u.content}
}

// Button is an interactive element that can be enabled or disabled.
type Button struct {
	Element
	label   string
	enabled bool
	clicks  int
}

// NewButton creates an enabled button.
func NewButton(app *Application, name, label string) *Button {
	return &Button{
		Element: NewElement(app, name),
		label:   label,
		enabled: true,
	}
}

// Label returns the button text.
func (b *Button) Label() string { return b.label }

// IsEnabled reports whether the button accepts clicks.
func (b *Button) IsEnabled() bool { return b.enabled }

// SetEnabled sets the enabled flag directly.
func (b *Button) SetEnabled(enabled bool) { b.enabled = enabled }

// Click registers a click if the button is enabled and reports whether it
// did.
func (b *Button) Click() bool {
	if !b.enabled {
		return false
	}
	b.clicks++
	return true
}

// Clicks returns the number of accepted clicks.
func (b *Button) Clicks() int { return b.clicks }
