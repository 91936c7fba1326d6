package ui

import (
	"fmt"

	"github.com/roach88/affinity/internal/attached"
)

// Verifier gates a button. Its presence is what matters.
type Verifier struct {
	Name string
}

// VerifierProperty attaches a *Verifier to a node. Buttons are enabled
// when it is non-nil and disabled when it is nil.
var VerifierProperty = attached.Register("Verifier", (*Verifier)(nil), onVerifierChanged)

func onVerifierChanged(obj any, _, newValue any) {
	b, ok := obj.(*Button)
	if !ok {
		return
	}
	v, _ := newValue.(*Verifier)
	b.SetEnabled(v != nil)
}

// SetVerifier attaches v to n. A nil v is stored explicitly.
func SetVerifier(n Node, v *Verifier) error {
	app := n.base().app
	if app == nil {
		return fmt.Errorf("set verifier on %q: element has no application", n.Name())
	}
	return app.Attached().Set(n, VerifierProperty, v)
}

// ClearVerifier removes any verifier from n so it reverts to the default.
func ClearVerifier(n Node) {
	if app := n.base().app; app != nil {
		app.Attached().Clear(n, VerifierProperty)
	}
}

// GetVerifier returns the verifier attached to n, or nil.
func GetVerifier(n Node) *Verifier {
	app := n.base().app
	if app == nil {
		return nil
	}
	v, _ := app.Attached().Get(n, VerifierProperty).(*Verifier)
	return v
}
