package attached

import (
	"fmt"
	"reflect"
	"sync"
)

type entryKey struct {
	obj  any
	prop *Property
}

// Store holds attached values. The zero value is not usable; call NewStore.
//
// Thread-safety: safe for concurrent use. Change callbacks run outside the
// lock, so they may read or write the store themselves.
type Store struct {
	mu     sync.RWMutex
	values map[entryKey]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[entryKey]any)}
}

// Get returns the value of prop on obj, or prop's default.
func (s *Store) Get(obj any, prop *Property) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[entryKey{obj, prop}]; ok {
		return v
	}
	return prop.def
}

// Has reports whether prop has an explicit value on obj.
func (s *Store) Has(obj any, prop *Property) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[entryKey{obj, prop}]
	return ok
}

// Set stores value for prop on obj. The change callback fires when the
// effective value differs from before.
func (s *Store) Set(obj any, prop *Property, value any) error {
	if err := checkTarget(obj, prop); err != nil {
		return err
	}

	key := entryKey{obj, prop}
	s.mu.Lock()
	old, ok := s.values[key]
	if !ok {
		old = prop.def
	}
	s.values[key] = value
	s.mu.Unlock()

	s.notify(obj, prop, old, value)
	return nil
}

// Clear removes the explicit value so reads fall back to the default.
func (s *Store) Clear(obj any, prop *Property) {
	if checkTarget(obj, prop) != nil {
		return
	}

	key := entryKey{obj, prop}
	s.mu.Lock()
	old, ok := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if ok {
		s.notify(obj, prop, old, prop.def)
	}
}

// Reset drops every entry. No change callbacks fire.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
}

// Len returns the number of explicit entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *Store) notify(obj any, prop *Property, oldValue, newValue any) {
	if prop.onChanged == nil || sameValue(oldValue, newValue) {
		return
	}
	prop.onChanged(obj, oldValue, newValue)
}

func checkTarget(obj any, prop *Property) error {
	if prop == nil {
		return fmt.Errorf("attached: nil property")
	}
	if obj == nil {
		return fmt.Errorf("attached: %s: nil target", prop.name)
	}
	if !reflect.TypeOf(obj).Comparable() {
		return fmt.Errorf("attached: %s: target %T has no identity", prop.name, obj)
	}
	return nil
}
