package analyzer

import (
	"fmt"
	"sort"

	"github.com/yuuichieguchi/constela/pkg/diag"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// validTransforms is the set of data-source transform values the build
// pipeline understands.
var validTransforms = map[string]bool{
	"":            true,
	"raw":         true,
	"json":        true,
	"yaml":        true,
	"frontmatter": true,
}

// Analyze runs the semantic pass over a page program. It returns the
// validated context on success, or every discoverable error in
// traversal order. It never returns both.
func Analyze(p *program.Program) (*AnalysisContext, []*diag.Error) {
	a := &analyzer{ctx: newContext(p), components: p.Components}
	a.checkVersion(p.Version)
	a.checkActions(p.Actions)
	a.checkData(p.Data)
	a.checkRoute(p.Route)
	a.checkComponents(p.Components)
	if p.View == nil {
		a.report(diag.New(diag.SchemaInvalid, "/view", "program has no view"))
	} else {
		a.walkNode(p.View, "/view", nil)
	}
	if len(a.errs) > 0 {
		return nil, a.errs
	}
	return a.ctx, nil
}

// AnalyzeLayout runs the semantic pass over a layout program,
// additionally recording the slot names its view declares.
func AnalyzeLayout(lp *program.LayoutProgram) (*LayoutAnalysisContext, []*diag.Error) {
	p := &program.Program{
		Version:    lp.Version,
		State:      lp.State,
		Actions:    lp.Actions,
		View:       lp.View,
		Data:       lp.Data,
		Imports:    lp.Imports,
		Components: lp.Components,
	}
	lctx := &LayoutAnalysisContext{SlotNames: make(map[string]bool)}
	a := &analyzer{ctx: newContext(p), components: lp.Components, layout: lctx}
	a.checkVersion(p.Version)
	a.checkActions(p.Actions)
	a.checkData(p.Data)
	a.checkComponents(p.Components)
	if p.View == nil {
		a.report(diag.New(diag.SchemaInvalid, "/view", "layout has no view"))
	} else {
		a.walkNode(p.View, "/view", nil)
	}
	if len(a.errs) > 0 {
		return nil, a.errs
	}
	lctx.AnalysisContext = *a.ctx
	return lctx, nil
}

type analyzer struct {
	ctx        *AnalysisContext
	components map[string]*program.Component
	layout     *LayoutAnalysisContext
	errs       []*diag.Error
}

func (a *analyzer) report(e *diag.Error) {
	a.errs = append(a.errs, e)
}

func (a *analyzer) checkVersion(v string) {
	if v != program.Version {
		e := diag.New(diag.UnsupportedVersion, "/version", "unsupported version %q", v)
		e.Expected = program.Version
		e.Actual = v
		a.report(e)
	}
}

// checkActions detects duplicate names and validates step targets and
// values. Every occurrence of a name after the first is reported.
func (a *analyzer) checkActions(actions []*program.Action) {
	seen := make(map[string]bool, len(actions))
	for i, act := range actions {
		path := fmt.Sprintf("/actions/%d", i)
		if seen[act.Name] {
			e := diag.New(diag.DuplicateAction, path, "duplicate action %q", act.Name)
			e.Actual = act.Name
			a.report(e)
		}
		seen[act.Name] = true

		for j, step := range act.Steps {
			stepPath := fmt.Sprintf("%s/steps/%d", path, j)
			if !a.ctx.StateNames[step.Target] {
				a.report(diag.NewUndefined(diag.UndefinedState, stepPath+"/target",
					"state", step.Target, sortedNames(a.ctx.StateNames)))
			}
			if step.Do == program.StepSet && step.Value == nil {
				a.report(diag.New(diag.SchemaInvalid, stepPath+"/value",
					"set step on %q requires a value", step.Target))
			}
			if step.Value != nil {
				// Step values may reference payload locals seeded at
				// dispatch time, so var resolution is deferred to runtime.
				a.walkExpr(step.Value, stepPath+"/value", nil, true)
			}
		}
	}
}

// checkData validates each data source's shape against its type.
func (a *analyzer) checkData(data map[string]*program.DataSource) {
	for _, name := range sortedKeys(data) {
		ds := data[name]
		path := "/data/" + name
		switch ds.Type {
		case program.DataGlob:
			if ds.Pattern == "" {
				a.report(diag.New(diag.InvalidDataSource, path, "glob data source %q requires a pattern", name))
			}
		case program.DataFile:
			if ds.Path == "" {
				a.report(diag.New(diag.InvalidDataSource, path, "file data source %q requires a path", name))
			}
		case program.DataAPI:
			if ds.URL == "" {
				a.report(diag.New(diag.InvalidDataSource, path, "api data source %q requires a url", name))
			}
		default:
			e := diag.New(diag.InvalidDataSource, path, "unknown data source type %q", ds.Type)
			e.Actual = string(ds.Type)
			a.report(e)
		}
		if !validTransforms[ds.Transform] {
			e := diag.New(diag.InvalidDataSource, path, "unsupported transform %q", ds.Transform)
			e.Actual = ds.Transform
			a.report(e)
		}
	}
}

func (a *analyzer) checkRoute(r *program.Route) {
	if r == nil || r.GetStaticPaths == nil {
		return
	}
	sp := r.GetStaticPaths
	srcPath := "/route/getStaticPaths/source"
	switch {
	case !a.ctx.HasData:
		a.report(diag.New(diag.DataNotDefined, srcPath,
			"getStaticPaths source %q references data, but the program has no data section", sp.Source))
	case !a.ctx.DataNames[sp.Source]:
		a.report(diag.NewUndefined(diag.UndefinedDataSource, srcPath,
			"data source", sp.Source, sortedNames(a.ctx.DataNames)))
	}
	// Param expressions run per source entry with entry locals seeded,
	// so vars resolve at build time.
	for _, key := range sortedKeys(sp.Params) {
		a.walkExpr(sp.Params[key], "/route/getStaticPaths/params/"+key, nil, true)
	}
}

// checkComponents validates each component view in its own prop scope
// and detects reference cycles between components.
func (a *analyzer) checkComponents(components map[string]*program.Component) {
	for _, name := range sortedKeys(components) {
		c := components[name]
		path := "/components/" + name
		if c.View == nil {
			a.report(diag.New(diag.SchemaInvalid, path+"/view", "component %q has no view", name))
			continue
		}
		props := make([]string, 0, len(c.Props))
		for pn := range c.Props {
			props = append(props, pn)
		}
		sc := (*scope)(nil).child(props...)
		a.walkNode(c.View, path+"/view", sc)
	}
	a.checkComponentCycles(components)
}

func (a *analyzer) walkNode(n program.Node, path string, sc *scope) {
	switch node := n.(type) {
	case *program.ElementNode:
		for _, name := range sortedKeys(node.Props) {
			a.walkProp(node.Props[name], path+"/props/"+name, sc)
		}
		for i, child := range node.Children {
			a.walkNode(child, fmt.Sprintf("%s/children/%d", path, i), sc)
		}
	case *program.TextNode:
		a.walkExpr(node.Value, path+"/value", sc, false)
	case *program.IfNode:
		a.walkExpr(node.Condition, path+"/condition", sc, false)
		if node.Then != nil {
			a.walkNode(node.Then, path+"/then", sc)
		}
		if node.Else != nil {
			a.walkNode(node.Else, path+"/else", sc)
		}
	case *program.EachNode:
		// An invalid items expression is reported and the body is still
		// walked normally; there is no short-circuit.
		a.walkExpr(node.Items, path+"/items", sc, false)
		if node.Body != nil {
			a.walkNode(node.Body, path+"/body", sc.child(node.As, node.Index))
		}
	case *program.SlotNode:
		if a.layout != nil {
			if node.IsDefaultSlot() {
				a.layout.HasDefaultSlot = true
			} else {
				a.layout.SlotNames[node.Name] = true
			}
		}
	case *program.ComponentNode:
		a.walkComponentNode(node, path, sc)
	case *program.CodeNode:
		// Literal content only.
	default:
		a.report(diag.New(diag.SchemaInvalid, path, "unknown view node %T", n))
	}
}

func (a *analyzer) walkProp(p program.Prop, path string, sc *scope) {
	switch prop := p.(type) {
	case program.StaticProp:
	case program.ExprProp:
		a.walkExpr(prop.Expr, path, sc, false)
	case program.EventProp:
		if !a.ctx.ActionNames[prop.Action] {
			a.report(diag.NewUndefined(diag.UndefinedAction, path,
				"action", prop.Action, sortedNames(a.ctx.ActionNames)))
		}
		if prop.Payload != nil {
			a.walkPayload(prop.Payload, path+"/payload", sc)
		}
	}
}

// walkPayload validates payload expressions. Event locals (value,
// files, isIntersecting, ...) are seeded at dispatch time, so var
// resolution inside payloads is deferred to runtime.
func (a *analyzer) walkPayload(pl *program.Payload, path string, sc *scope) {
	if pl.Expr != nil {
		a.walkExpr(pl.Expr, path, sc, true)
		return
	}
	for _, key := range sortedKeys(pl.Fields) {
		a.walkExpr(pl.Fields[key], path+"/"+key, sc, true)
	}
}

// walkExpr validates one expression against the context and the current
// scope chain. skipVars suppresses VAR_UNDEFINED for positions where
// locals are seeded at runtime (event payloads, action step values).
func (a *analyzer) walkExpr(e program.Expr, path string, sc *scope, skipVars bool) {
	switch expr := e.(type) {
	case program.Lit:
	case program.StateRef:
		if !a.ctx.StateNames[expr.Name] {
			a.report(diag.NewUndefined(diag.UndefinedState, path,
				"state", expr.Name, sortedNames(a.ctx.StateNames)))
		}
	case program.VarRef:
		if !skipVars && !sc.resolves(expr.Name) {
			a.report(diag.NewUndefined(diag.VarUndefined, path,
				"variable", expr.Name, sc.visible()))
		}
	case program.DataRef:
		switch {
		case !a.ctx.HasData:
			a.report(diag.New(diag.DataNotDefined, path,
				"data %q is referenced, but the program has no data section", expr.Name))
		case !a.ctx.DataNames[expr.Name]:
			a.report(diag.NewUndefined(diag.UndefinedData, path,
				"data", expr.Name, sortedNames(a.ctx.DataNames)))
		}
	case program.ImportRef:
		if !a.ctx.ImportNames[expr.Name] {
			a.report(diag.NewUndefined(diag.SchemaInvalid, path,
				"import", expr.Name, sortedNames(a.ctx.ImportNames)))
		}
	case program.RouteRef:
		if expr.Source == program.RouteParam && len(a.ctx.RouteParams) > 0 && !a.ctx.RouteParams[expr.Name] {
			a.report(diag.NewUndefined(diag.ParamUndefined, path,
				"route param", expr.Name, sortedNames(a.ctx.RouteParams)))
		}
	case program.Get:
		a.walkExpr(expr.Base, path+"/base", sc, skipVars)
	case program.Bin:
		a.walkExpr(expr.Left, path+"/left", sc, skipVars)
		a.walkExpr(expr.Right, path+"/right", sc, skipVars)
	case program.Concat:
		for i, item := range expr.Items {
			a.walkExpr(item, fmt.Sprintf("%s/items/%d", path, i), sc, skipVars)
		}
	case program.StyleExpr:
		for _, key := range sortedKeys(expr.Variants) {
			a.walkExpr(expr.Variants[key], path+"/variants/"+key, sc, skipVars)
		}
	case program.CookieRef:
	default:
		a.report(diag.New(diag.SchemaInvalid, path, "unknown expression %T", e))
	}
}

func (a *analyzer) walkComponentNode(node *program.ComponentNode, path string, sc *scope) {
	def, found := a.components[node.Name]
	if !found {
		a.report(diag.NewUndefined(diag.ComponentNotFound, path,
			"component", node.Name, sortedNames(a.ctx.ComponentNames)))
	}
	for _, name := range sortedKeys(node.Props) {
		a.walkExpr(node.Props[name], path+"/props/"+name, sc, false)
	}
	if def == nil {
		return
	}
	for _, pn := range sortedKeys(def.Props) {
		spec := def.Props[pn]
		given, ok := node.Props[pn]
		if !ok {
			if spec.Required {
				e := diag.New(diag.ComponentPropMissed, path+"/props",
					"component %q is missing required prop %q", node.Name, pn)
				e.Expected = pn
				a.report(e)
			}
			continue
		}
		if lit, isLit := given.(program.Lit); isLit && spec.Type != "" {
			if actual := litTypeName(lit.Value); actual != spec.Type {
				e := diag.New(diag.ComponentPropType, path+"/props/"+pn,
					"component %q prop %q expects %s, got %s", node.Name, pn, spec.Type, actual)
				e.Expected = spec.Type
				e.Actual = actual
				a.report(e)
			}
		}
	}
}

// litTypeName maps a literal's Go value onto the DSL's type vocabulary.
func litTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
