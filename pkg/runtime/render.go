package runtime

import (
	"sort"

	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/eval"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// renderer walks a compiled view tree and materializes it as DOM,
// registering state subscriptions for every bound expression. The same
// renderer drives both fresh mounts and region re-renders.
type renderer struct {
	app *App
}

// renderNode renders one view node into parent, appending its output
// and returning the top-level DOM nodes it produced.
func (r *renderer) renderNode(node program.Node, parent *dom.Element, locals *eval.Scope, cl *cleanups) []dom.Node {
	switch n := node.(type) {
	case nil:
		return nil
	case *program.ElementNode:
		return []dom.Node{r.renderElement(n, parent, locals, cl)}
	case *program.TextNode:
		return []dom.Node{r.renderText(n, parent, locals, cl)}
	case *program.IfNode:
		return r.renderIf(n, parent, locals, cl)
	case *program.EachNode:
		return r.renderEach(n, parent, locals, cl)
	case *program.ComponentNode:
		return r.renderComponent(n, parent, locals, cl)
	case *program.SlotNode:
		// An unfilled slot that survived composition renders nothing.
		return nil
	case *program.CodeNode:
		return []dom.Node{r.renderCode(n, parent)}
	default:
		return nil
	}
}

func (r *renderer) renderElement(n *program.ElementNode, parent *dom.Element, locals *eval.Scope, cl *cleanups) *dom.Element {
	el := r.app.doc.CreateElement(n.Tag)
	parent.AppendChild(el)
	r.bindProps(el, n, locals, cl)
	for _, child := range n.Children {
		r.renderNode(child, el, locals, cl)
	}
	return el
}

func (r *renderer) renderText(n *program.TextNode, parent *dom.Element, locals *eval.Scope, cl *cleanups) *dom.Text {
	txt := r.app.doc.CreateText("")
	parent.AppendChild(txt)
	r.bindExpr(n.Value, locals, cl, func(v any) {
		txt.Data = eval.Stringify(v)
	})
	return txt
}

func (r *renderer) renderCode(n *program.CodeNode, parent *dom.Element) *dom.Element {
	pre := r.app.doc.CreateElement("pre")
	code := r.app.doc.CreateElement("code")
	if n.Language != "" {
		code.SetAttribute("class", "language-"+n.Language)
	}
	code.AppendChild(r.app.doc.CreateText(n.Content))
	pre.AppendChild(code)
	parent.AppendChild(pre)
	return pre
}

// renderComponent instantiates a component view. Props are evaluated
// once in the call-site scope and become the only bindings visible
// inside the component body.
func (r *renderer) renderComponent(n *program.ComponentNode, parent *dom.Element, locals *eval.Scope, cl *cleanups) []dom.Node {
	comp, ok := r.app.prog.Components[n.Name]
	if !ok {
		return nil
	}
	vars := make(map[string]any, len(n.Props))
	ctx := r.app.evalContext(locals)
	for name, expr := range n.Props {
		v, err := eval.Evaluate(expr, ctx)
		if err != nil {
			r.app.reportError(err)
			continue
		}
		vars[name] = v
	}
	return r.renderNode(comp.View, parent, eval.NewScope(vars), cl)
}

func (r *renderer) renderIf(n *program.IfNode, parent *dom.Element, locals *eval.Scope, cl *cleanups) []dom.Node {
	reg := r.newRegion(parent, cl, r.ifContent(n, locals))
	reg.mount()
	r.subscribeRegion(reg, eval.StateDeps(n.Condition, nil), cl)
	return reg.allNodes()
}

func (r *renderer) renderEach(n *program.EachNode, parent *dom.Element, locals *eval.Scope, cl *cleanups) []dom.Node {
	reg := r.newRegion(parent, cl, r.eachContent(n, locals))
	reg.mount()
	r.subscribeRegion(reg, eval.StateDeps(n.Items, nil), cl)
	return reg.allNodes()
}

// activeBranch picks the branch of an if node for the current state.
// Either branch may be nil.
func (r *renderer) activeBranch(n *program.IfNode, locals *eval.Scope) program.Node {
	cond, err := eval.Evaluate(n.Condition, r.app.evalContext(locals))
	if err != nil {
		r.app.reportError(err)
		return nil
	}
	if eval.Truthy(cond) {
		return n.Then
	}
	return n.Else
}

// eachBindings evaluates the items of an each node into one scope per
// iteration.
func (r *renderer) eachBindings(n *program.EachNode, locals *eval.Scope) []*eval.Scope {
	items, err := eval.Evaluate(n.Items, r.app.evalContext(locals))
	if err != nil {
		r.app.reportError(err)
		return nil
	}
	list, _ := items.([]any)
	scopes := make([]*eval.Scope, 0, len(list))
	for i, item := range list {
		vars := map[string]any{n.As: item}
		if n.Index != "" {
			vars[n.Index] = float64(i)
		}
		scopes = append(scopes, locals.Child(vars))
	}
	return scopes
}

func (r *renderer) ifContent(n *program.IfNode, locals *eval.Scope) func(*region) []dom.Node {
	return func(reg *region) []dom.Node {
		return reg.renderContent(r.activeBranch(n, locals), locals)
	}
}

func (r *renderer) eachContent(n *program.EachNode, locals *eval.Scope) func(*region) []dom.Node {
	return func(reg *region) []dom.Node {
		var out []dom.Node
		for _, scope := range r.eachBindings(n, locals) {
			out = append(out, reg.renderContent(n.Body, scope)...)
		}
		return out
	}
}

// subscribeRegion re-renders a region whenever one of the named state
// fields changes.
func (r *renderer) subscribeRegion(reg *region, deps []string, cl *cleanups) {
	for _, dep := range deps {
		unsub, err := r.app.store.Subscribe(dep, func(any) {
			reg.swap()
		})
		if err != nil {
			r.app.reportError(err)
			continue
		}
		cl.add(unsub)
	}
}

// bindProps wires an element's props: static attributes, reactive
// expression attributes and event handlers.
func (r *renderer) bindProps(el *dom.Element, n *program.ElementNode, locals *eval.Scope, cl *cleanups) {
	for _, name := range sortedPropNames(n.Props) {
		switch p := n.Props[name].(type) {
		case program.StaticProp:
			applyAttr(el, name, p.Value)
		case program.ExprProp:
			name := name
			r.bindExpr(p.Expr, locals, cl, func(v any) {
				applyAttr(el, name, v)
			})
		case program.EventProp:
			r.bindEvent(el, p, locals, cl)
		}
	}
}

// applyAttr maps a runtime value onto an attribute: nil and false
// remove it, true sets the bare attribute, everything else stringifies.
// The "value" attribute additionally tracks the live input value.
func applyAttr(el *dom.Element, name string, v any) {
	switch t := v.(type) {
	case nil:
		el.RemoveAttribute(name)
		return
	case bool:
		if !t {
			el.RemoveAttribute(name)
			return
		}
		el.SetAttribute(name, "")
		return
	}
	s := eval.Stringify(v)
	el.SetAttribute(name, s)
	if name == "value" {
		el.Value = s
	}
}

// bindExpr applies an expression now and re-applies it whenever any of
// its state dependencies change.
func (r *renderer) bindExpr(expr program.Expr, locals *eval.Scope, cl *cleanups, apply func(any)) {
	v, err := eval.Evaluate(expr, r.app.evalContext(locals))
	if err != nil {
		r.app.reportError(err)
	} else {
		apply(v)
	}
	for _, dep := range eval.StateDeps(expr, nil) {
		unsub, err := r.app.store.Subscribe(dep, func(any) {
			v, err := eval.Evaluate(expr, r.app.evalContext(locals))
			if err != nil {
				r.app.reportError(err)
				return
			}
			apply(v)
		})
		if err != nil {
			r.app.reportError(err)
			continue
		}
		cl.add(unsub)
	}
}

// region is a dynamically re-renderable span of siblings. An empty text
// marker anchors the span in the parent so re-rendering stays position
// stable even when neighboring regions grow or shrink. Content
// subscriptions live in the region's own arena, torn down on every
// swap; the region registers a final teardown in the outer arena.
type region struct {
	r      *renderer
	parent *dom.Element
	marker *dom.Text
	nodes  []dom.Node
	cl     *cleanups
	render func(*region) []dom.Node
}

func (r *renderer) newRegion(parent *dom.Element, outer *cleanups, render func(*region) []dom.Node) *region {
	reg := &region{
		r:      r,
		parent: parent,
		marker: r.app.doc.CreateText(""),
		cl:     &cleanups{},
		render: render,
	}
	outer.add(func() { reg.cl.run() })
	return reg
}

// mount performs the initial render: content first, marker after it.
func (reg *region) mount() {
	reg.nodes = reg.render(reg)
	reg.parent.AppendChild(reg.marker)
}

// adopt takes ownership of already-present nodes during hydration and
// inserts the marker immediately after them.
func (reg *region) adopt(nodes []dom.Node, at int) {
	reg.nodes = nodes
	reg.parent.InsertAt(at, reg.marker)
}

// renderContent renders node into a detached fragment under the
// region's arena and returns the produced nodes still attached to the
// fragment; mount and swap move them into place.
func (reg *region) renderContent(node program.Node, locals *eval.Scope) []dom.Node {
	frag := reg.r.app.doc.CreateElement("template")
	nodes := reg.r.renderNode(node, frag, locals, reg.cl)
	idx := reg.parent.IndexOf(reg.marker)
	if idx < 0 {
		idx = len(reg.parent.Children())
	}
	for _, n := range nodes {
		reg.parent.InsertAt(idx, n)
		idx++
	}
	return nodes
}

// swap tears down the current content and renders fresh content in
// place.
func (reg *region) swap() {
	reg.cl.run()
	reg.cl = &cleanups{}
	for _, n := range reg.nodes {
		reg.parent.RemoveChild(n)
	}
	reg.nodes = reg.render(reg)
}

func (reg *region) allNodes() []dom.Node {
	return append(append([]dom.Node(nil), reg.nodes...), reg.marker)
}

func sortedPropNames(props map[string]program.Prop) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
