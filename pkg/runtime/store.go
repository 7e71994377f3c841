// Package runtime implements the client-side half of Constela: the
// state store, the renderer that materializes a compiled view into the
// DOM with reactive bindings, and the hydrator that re-attaches those
// bindings onto server-rendered markup.
package runtime

import (
	"fmt"
	"sync"

	"github.com/yuuichieguchi/constela/pkg/program"
)

// Store is a keyed mutable value container with per-field subscriber
// lists. It is owned by exactly one app instance; all mutation funnels
// through Set.
type Store struct {
	mu     sync.Mutex
	fields map[string]bool
	values map[string]any
	subs   map[string][]*subscription
}

type subscription struct {
	fn      func(any)
	removed bool
}

// NewStore creates a store seeded with each declared field's initial
// value.
func NewStore(fields map[string]program.StateField) *Store {
	s := &Store{
		fields: make(map[string]bool, len(fields)),
		values: make(map[string]any, len(fields)),
		subs:   make(map[string][]*subscription),
	}
	for name, f := range fields {
		s.fields[name] = true
		s.values[name] = f.Initial
	}
	return s
}

// Get returns the current value of a field and whether it is declared.
func (s *Store) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fields[name] {
		return nil, false
	}
	return s.values[name], true
}

// Set assigns a field and synchronously notifies its subscribers in
// subscription order. Setting an undeclared field is a contract
// violation and returns an error naming it.
func (s *Store) Set(name string, value any) error {
	s.mu.Lock()
	if !s.fields[name] {
		s.mu.Unlock()
		return fmt.Errorf("state field %q is not declared", name)
	}
	s.values[name] = value
	subs := append([]*subscription(nil), s.subs[name]...)
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.removed {
			sub.fn(value)
		}
	}
	return nil
}

// Subscribe registers a callback invoked on every Set of the named
// field. Subscribing to an undeclared field is a contract violation
// and returns an error naming it. The returned unsubscribe function is
// idempotent.
func (s *Store) Subscribe(name string, fn func(any)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fields[name] {
		return nil, fmt.Errorf("cannot subscribe to undeclared state field %q", name)
	}
	sub := &subscription{fn: fn}
	s.subs[name] = append(s.subs[name], sub)
	return func() {
		s.mu.Lock()
		sub.removed = true
		s.mu.Unlock()
	}, nil
}
