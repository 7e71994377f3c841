// Package analyzer implements the semantic pass over Constela programs:
// it builds the declared-name context, walks the view tree with a
// lexical scope stack, and validates every reference, collecting all
// errors instead of failing on the first.
package analyzer

import (
	"sort"

	"github.com/yuuichieguchi/constela/pkg/program"
)

// AnalysisContext is the immutable snapshot of declared top-level names
// for one program. It is compile-time name validity only; runtime
// variable scopes live in pkg/eval.
type AnalysisContext struct {
	StateNames     map[string]bool
	ActionNames    map[string]bool
	ComponentNames map[string]bool
	RouteParams    map[string]bool
	ImportNames    map[string]bool
	DataNames      map[string]bool

	// HasData distinguishes "no data section at all" from "data section
	// without this name"; the former is the more specific DATA_NOT_DEFINED.
	HasData bool
}

// LayoutAnalysisContext extends AnalysisContext with the slots a layout
// view declares.
type LayoutAnalysisContext struct {
	AnalysisContext
	SlotNames      map[string]bool
	HasDefaultSlot bool
}

// newContext scans a program's declarations into an AnalysisContext.
// Duplicate detection happens in the analyzer walk, not here.
func newContext(p *program.Program) *AnalysisContext {
	ctx := &AnalysisContext{
		StateNames:     make(map[string]bool, len(p.State)),
		ActionNames:    make(map[string]bool, len(p.Actions)),
		ComponentNames: make(map[string]bool, len(p.Components)),
		RouteParams:    make(map[string]bool),
		ImportNames:    make(map[string]bool, len(p.Imports)),
		DataNames:      make(map[string]bool, len(p.Data)),
		HasData:        p.Data != nil,
	}
	for name := range p.State {
		ctx.StateNames[name] = true
	}
	for _, a := range p.Actions {
		ctx.ActionNames[a.Name] = true
	}
	for name := range p.Components {
		ctx.ComponentNames[name] = true
	}
	for name := range p.Imports {
		ctx.ImportNames[name] = true
	}
	for name := range p.Data {
		ctx.DataNames[name] = true
	}
	if p.Route != nil {
		for _, param := range p.Route.ParamNames() {
			ctx.RouteParams[param] = true
		}
	}
	return ctx
}

// sortedNames returns the keys of a name set in stable order, for
// error context and suggestions.
func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scope is one frame of the compile-time lexical scope stack. Frames
// are pushed on each entry and popped on exit; lookup walks outward.
type scope struct {
	parent *scope
	names  map[string]bool
}

func (s *scope) child(names ...string) *scope {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	return &scope{parent: s, names: set}
}

func (s *scope) resolves(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

// visible collects every name reachable from the scope chain, nearest
// frame first, for VAR_UNDEFINED suggestions.
func (s *scope) visible() []string {
	seen := make(map[string]bool)
	var names []string
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
