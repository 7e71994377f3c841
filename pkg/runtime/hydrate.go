package runtime

import (
	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/eval"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// hydrateNode binds one view node onto server-rendered DOM. pos is the
// cursor into parent's children; matching nodes are adopted in place
// and pos advances past them. When the existing DOM diverges from what
// the view would render, hydration falls back to fresh rendering at
// the cursor, so a stale or hand-edited document degrades to a rebuild
// of the divergent span instead of a failure.
func (r *renderer) hydrateNode(node program.Node, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	switch n := node.(type) {
	case nil:
		return nil
	case *program.ElementNode:
		return r.hydrateElement(n, parent, pos, locals, cl)
	case *program.TextNode:
		return r.hydrateText(n, parent, pos, locals, cl)
	case *program.IfNode:
		return r.hydrateIf(n, parent, pos, locals, cl)
	case *program.EachNode:
		return r.hydrateEach(n, parent, pos, locals, cl)
	case *program.ComponentNode:
		return r.hydrateComponent(n, parent, pos, locals, cl)
	case *program.SlotNode:
		return nil
	case *program.CodeNode:
		return r.hydrateCode(n, parent, pos)
	default:
		return nil
	}
}

func (r *renderer) hydrateElement(n *program.ElementNode, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	el, ok := childAt(parent, *pos).(*dom.Element)
	if !ok || el.Tag != n.Tag {
		return r.hydrateFallback(n, parent, pos, locals, cl)
	}
	*pos++
	r.bindProps(el, n, locals, cl)
	childPos := 0
	for _, child := range n.Children {
		r.hydrateNode(child, el, &childPos, locals, cl)
	}
	return []dom.Node{el}
}

func (r *renderer) hydrateText(n *program.TextNode, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	txt, ok := childAt(parent, *pos).(*dom.Text)
	if !ok {
		// The serializer merges adjacent text runs, so a second
		// consecutive text node has no counterpart in the parsed DOM.
		// Creating it here and re-applying the first node's binding
		// splits the run back apart.
		return r.hydrateFallback(n, parent, pos, locals, cl)
	}
	*pos++
	r.bindExpr(n.Value, locals, cl, func(v any) {
		txt.Data = eval.Stringify(v)
	})
	return []dom.Node{txt}
}

func (r *renderer) hydrateCode(n *program.CodeNode, parent *dom.Element, pos *int) []dom.Node {
	el, ok := childAt(parent, *pos).(*dom.Element)
	if !ok || el.Tag != "pre" {
		frag := r.app.doc.CreateElement("template")
		created := r.renderCode(n, frag)
		parent.InsertAt(*pos, created)
		*pos++
		return []dom.Node{created}
	}
	*pos++
	return []dom.Node{el}
}

func (r *renderer) hydrateIf(n *program.IfNode, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	reg := r.newRegion(parent, cl, r.ifContent(n, locals))
	nodes := r.hydrateNode(r.activeBranch(n, locals), parent, pos, locals, reg.cl)
	reg.adopt(nodes, *pos)
	*pos++
	r.subscribeRegion(reg, eval.StateDeps(n.Condition, nil), cl)
	return reg.allNodes()
}

func (r *renderer) hydrateEach(n *program.EachNode, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	reg := r.newRegion(parent, cl, r.eachContent(n, locals))
	var nodes []dom.Node
	for _, scope := range r.eachBindings(n, locals) {
		nodes = append(nodes, r.hydrateNode(n.Body, parent, pos, scope, reg.cl)...)
	}
	reg.adopt(nodes, *pos)
	*pos++
	r.subscribeRegion(reg, eval.StateDeps(n.Items, nil), cl)
	return reg.allNodes()
}

func (r *renderer) hydrateComponent(n *program.ComponentNode, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
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
	return r.hydrateNode(comp.View, parent, pos, eval.NewScope(vars), cl)
}

// hydrateFallback renders node fresh and splices it in at the cursor.
func (r *renderer) hydrateFallback(node program.Node, parent *dom.Element, pos *int, locals *eval.Scope, cl *cleanups) []dom.Node {
	frag := r.app.doc.CreateElement("template")
	nodes := r.renderNode(node, frag, locals, cl)
	for _, n := range nodes {
		parent.InsertAt(*pos, n)
		*pos++
	}
	return nodes
}

func childAt(parent *dom.Element, i int) dom.Node {
	children := parent.Children()
	if i < 0 || i >= len(children) {
		return nil
	}
	return children[i]
}
