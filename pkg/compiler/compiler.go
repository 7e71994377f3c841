// Package compiler turns analyzed programs into their compiled form and
// implements layout composition: slot substitution, state and action
// namespacing, and import-data merging.
package compiler

import (
	"github.com/yuuichieguchi/constela/pkg/analyzer"
	"github.com/yuuichieguchi/constela/pkg/diag"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// Compile analyzes a page program and produces its compiled form. The
// returned program has actions keyed by name and is safe to hand to the
// renderer. On analysis failure the collected errors are returned and
// the program is nil.
func Compile(p *program.Program) (*program.CompiledProgram, []*diag.Error) {
	if _, errs := analyzer.Analyze(p); errs != nil {
		return nil, errs
	}
	return &program.CompiledProgram{
		Version:    p.Version,
		State:      copyState(p.State),
		Actions:    compileActions(p.Actions),
		View:       p.View,
		Components: copyComponents(p.Components),
		Route:      p.Route,
		Data:       p.Data,
		ImportData: map[string]any{},
	}, nil
}

// CompiledLayout is a validated layout ready for composition with a
// page.
type CompiledLayout struct {
	Version    string
	State      map[string]program.StateField
	Actions    map[string]*program.CompiledAction
	View       program.Node
	Components map[string]*program.Component
	Data       map[string]*program.DataSource
	ImportData map[string]any

	// Slots records the named slots the layout view declares.
	Slots          map[string]bool
	HasDefaultSlot bool
}

// TransformLayout analyzes a layout program in isolation and produces
// its compiled form.
func TransformLayout(lp *program.LayoutProgram) (*CompiledLayout, []*diag.Error) {
	lctx, errs := analyzer.AnalyzeLayout(lp)
	if errs != nil {
		return nil, errs
	}
	return &CompiledLayout{
		Version:        lp.Version,
		State:          copyState(lp.State),
		Actions:        compileActions(lp.Actions),
		View:           lp.View,
		Components:     copyComponents(lp.Components),
		Data:           lp.Data,
		ImportData:     map[string]any{},
		Slots:          lctx.SlotNames,
		HasDefaultSlot: lctx.HasDefaultSlot,
	}, nil
}

func compileActions(actions []*program.Action) map[string]*program.CompiledAction {
	out := make(map[string]*program.CompiledAction, len(actions))
	for _, a := range actions {
		out[a.Name] = &program.CompiledAction{Name: a.Name, Steps: a.Steps}
	}
	return out
}

func copyState(state map[string]program.StateField) map[string]program.StateField {
	out := make(map[string]program.StateField, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

func copyComponents(components map[string]*program.Component) map[string]*program.Component {
	out := make(map[string]*program.Component, len(components))
	for k, v := range components {
		out[k] = v
	}
	return out
}
