// Package ui is a minimal loop-affine element tree: an Application, its
// Windows, and the elements hosted in them.
//
// Nothing here is safe for concurrent use except ReadyEvent. Every other
// method must run on the loop that owns the Application, which in practice
// means inside a harness Execute callback or a factory.
//
// Elements raise their Loaded event once the window hosting them has been
// shown and the loop has processed the load pass. Buttons follow the
// Verifier attached property: setting a verifier enables the button,
// setting it to nil disables it.
package ui
