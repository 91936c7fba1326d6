package ui

import "github.com/roach88/affinity/internal/canon"

// FindChild searches the descendants of root depth first and returns the
// first node of type T whose name matches. An empty name matches any
// node of type T. Names are compared in NFC form. root itself is not a
// candidate.
func FindChild[T Node](root Node, name string) (T, bool) {
	var zero T
	if root == nil {
		return zero, false
	}
	for _, child := range root.Children() {
		if typed, ok := child.(T); ok && (name == "" || canon.EqualNames(child.Name(), name)) {
			return typed, true
		}
		if found, ok := FindChild[T](child, name); ok {
			return found, true
		}
	}
	return zero, false
}

// Walk visits root and its descendants depth first, parents first. It
// stops early when fn returns false.
func Walk(root Node, fn func(n Node, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children() {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}
