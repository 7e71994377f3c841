// Package eval implements the expression evaluator: given a compiled
// expression and an evaluation context (state, locals, route, data,
// imports), it produces a concrete runtime value. Evaluation is a pure
// function of its inputs and never mutates the context.
package eval

// Scope is a persistent chain of variable frames. Lookup walks outward
// through parent frames; Child never mutates the receiver, so sibling
// subtrees cannot observe each other's bindings.
type Scope struct {
	parent *Scope
	vars   map[string]any
}

// NewScope creates a root scope over the given variables. vars may be
// nil.
func NewScope(vars map[string]any) *Scope {
	return &Scope{vars: vars}
}

// Child creates a nested frame binding vars over the receiver. The
// receiver may be nil.
func (s *Scope) Child(vars map[string]any) *Scope {
	return &Scope{parent: s, vars: vars}
}

// Lookup resolves name in the nearest enclosing frame.
func (s *Scope) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}
