// Package attached stores values that belong to an object without being
// fields of it.
//
// A Property is a descriptor registered once. A Store maps
// (object identity, property) to a value; reading an unset entry yields
// the property's default. Objects are keyed by identity, so targets must
// be pointers (or other comparable values).
package attached

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// ChangedFunc is called after the effective value of a property on obj
// changed. It runs on the goroutine that made the change, with no store
// lock held.
type ChangedFunc func(obj any, oldValue, newValue any)

// Property describes one attached value.
type Property struct {
	id        uint64
	name      string
	def       any
	onChanged ChangedFunc
}

var nextID atomic.Uint64

// Register creates a property named name. def is returned by reads of
// unset entries; onChanged may be nil.
func Register(name string, def any, onChanged ChangedFunc) *Property {
	return &Property{
		id:        nextID.Add(1),
		name:      name,
		def:       def,
		onChanged: onChanged,
	}
}

// Name returns the property name.
func (p *Property) Name() string {
	return p.name
}

// Default returns the default value.
func (p *Property) Default() any {
	return p.def
}

func (p *Property) String() string {
	return fmt.Sprintf("%s#%d", p.name, p.id)
}

// sameValue reports whether a and b are the same value. Values of
// non-comparable types are never the same, so a change is always reported.
func sameValue(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}
