package program

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Decode parses authored program JSON into a typed Program. Errors are
// structural (malformed JSON, unknown node or expression kinds); name
// resolution is the analyzer's job, not the decoder's.
func Decode(data []byte) (*Program, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid program JSON: %w", err)
	}
	return DecodeMap(raw)
}

// DecodeMap decodes an already-unmarshalled program document.
func DecodeMap(raw map[string]any) (*Program, error) {
	p := &Program{}
	if v, ok := raw["version"].(string); ok {
		p.Version = v
	}

	var err error
	if p.State, err = decodeState(raw["state"]); err != nil {
		return nil, err
	}
	if p.Actions, err = decodeActions(raw["actions"]); err != nil {
		return nil, err
	}
	if p.Data, err = decodeData(raw["data"]); err != nil {
		return nil, err
	}
	if p.Imports, err = decodeImports(raw["imports"]); err != nil {
		return nil, err
	}
	if p.Route, err = decodeRoute(raw["route"]); err != nil {
		return nil, err
	}
	if p.Components, err = decodeComponents(raw["components"]); err != nil {
		return nil, err
	}

	view, ok := raw["view"]
	if !ok {
		return nil, fmt.Errorf("program has no view")
	}
	if p.View, err = DecodeNode(view); err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	return p, nil
}

// DecodeLayout parses authored layout JSON into a typed LayoutProgram.
// Layouts never carry a route.
func DecodeLayout(data []byte) (*LayoutProgram, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid layout JSON: %w", err)
	}
	if r, ok := raw["route"]; ok && r != nil {
		return nil, fmt.Errorf("layout must not declare a route")
	}
	delete(raw, "type")
	p, err := DecodeMap(raw)
	if err != nil {
		return nil, err
	}
	return &LayoutProgram{
		Version:    p.Version,
		State:      p.State,
		Actions:    p.Actions,
		View:       p.View,
		Data:       p.Data,
		Imports:    p.Imports,
		Components: p.Components,
	}, nil
}

func decodeState(v any) (map[string]StateField, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("state must be an object")
	}
	out := make(map[string]StateField, len(m))
	for name, fv := range m {
		var f StateField
		if err := mapstructure.Decode(fv, &f); err != nil {
			return nil, fmt.Errorf("state field %q: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

// decodeActions accepts both the authored list form (ordered, may carry
// duplicates for the analyzer to report) and the object form keyed by
// action name.
func decodeActions(v any) ([]*Action, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]*Action, 0, len(vv))
		for i, av := range vv {
			a, err := decodeAction(av)
			if err != nil {
				return nil, fmt.Errorf("actions[%d]: %w", i, err)
			}
			out = append(out, a)
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(vv))
		for name := range vv {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*Action, 0, len(names))
		for _, name := range names {
			a, err := decodeAction(vv[name])
			if err != nil {
				return nil, fmt.Errorf("actions.%s: %w", name, err)
			}
			if a.Name == "" {
				a.Name = name
			}
			out = append(out, a)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("actions must be a list or object")
	}
}

func decodeAction(v any) (*Action, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("action must be an object")
	}
	a := &Action{}
	if name, ok := m["name"].(string); ok {
		a.Name = name
	}
	steps, _ := m["steps"].([]any)
	for i, sv := range steps {
		step, err := decodeStep(sv)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		a.Steps = append(a.Steps, step)
	}
	return a, nil
}

func decodeStep(v any) (Step, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Step{}, fmt.Errorf("step must be an object")
	}
	s := Step{}
	do, _ := m["do"].(string)
	switch StepDo(do) {
	case StepSet, StepUpdate:
		s.Do = StepDo(do)
	default:
		return Step{}, fmt.Errorf("unknown step do %q", do)
	}
	s.Target, _ = m["target"].(string)
	s.Operation, _ = m["operation"].(string)
	if val, ok := m["value"]; ok {
		expr, err := DecodeExpr(val)
		if err != nil {
			return Step{}, fmt.Errorf("value: %w", err)
		}
		s.Value = expr
	}
	return s, nil
}

func decodeData(v any) (map[string]*DataSource, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("data must be an object")
	}
	out := make(map[string]*DataSource, len(m))
	for name, dv := range m {
		var ds DataSource
		if err := mapstructure.Decode(dv, &ds); err != nil {
			return nil, fmt.Errorf("data source %q: %w", name, err)
		}
		out[name] = &ds
	}
	return out, nil
}

func decodeImports(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("imports must be an object")
	}
	out := make(map[string]string, len(m))
	for name, iv := range m {
		s, ok := iv.(string)
		if !ok {
			return nil, fmt.Errorf("import %q must be a string path", name)
		}
		out[name] = s
	}
	return out, nil
}

func decodeRoute(v any) (*Route, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("route must be an object")
	}
	r := &Route{}
	r.Path, _ = m["path"].(string)
	r.Layout, _ = m["layout"].(string)
	if lp, ok := m["layoutParams"].(map[string]any); ok {
		r.LayoutParams = lp
	}
	if meta, ok := m["meta"].(map[string]any); ok {
		r.Meta = meta
	}
	if gsp, ok := m["getStaticPaths"].(map[string]any); ok {
		sp := &StaticPaths{}
		sp.Source, _ = gsp["source"].(string)
		if params, ok := gsp["params"].(map[string]any); ok {
			sp.Params = make(map[string]Expr, len(params))
			for k, pv := range params {
				expr, err := DecodeExpr(pv)
				if err != nil {
					return nil, fmt.Errorf("getStaticPaths.params.%s: %w", k, err)
				}
				sp.Params[k] = expr
			}
		}
		r.GetStaticPaths = sp
	}
	return r, nil
}

func decodeComponents(v any) (map[string]*Component, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("components must be an object")
	}
	out := make(map[string]*Component, len(m))
	for name, cv := range m {
		cm, ok := cv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("component %q must be an object", name)
		}
		c := &Component{}
		if props, ok := cm["props"].(map[string]any); ok {
			c.Props = make(map[string]ComponentProp, len(props))
			for pn, pv := range props {
				var cp ComponentProp
				if err := mapstructure.Decode(pv, &cp); err != nil {
					return nil, fmt.Errorf("component %q prop %q: %w", name, pn, err)
				}
				c.Props[pn] = cp
			}
		}
		if view, ok := cm["view"]; ok {
			node, err := DecodeNode(view)
			if err != nil {
				return nil, fmt.Errorf("component %q view: %w", name, err)
			}
			c.View = node
		}
		out[name] = c
	}
	return out, nil
}

// DecodeNode decodes one view node and its subtree.
func DecodeNode(v any) (Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("view node must be an object")
	}
	kind, _ := m["kind"].(string)
	switch NodeKind(kind) {
	case KindElement:
		return decodeElement(m)
	case KindText:
		val, ok := m["value"]
		if !ok {
			return nil, fmt.Errorf("text node has no value")
		}
		expr, err := DecodeExpr(val)
		if err != nil {
			return nil, fmt.Errorf("text value: %w", err)
		}
		return &TextNode{Value: expr}, nil
	case KindIf:
		return decodeIf(m)
	case KindEach:
		return decodeEach(m)
	case KindSlot:
		name, _ := m["name"].(string)
		return &SlotNode{Name: name}, nil
	case KindComponent:
		return decodeComponent(m)
	case KindCode:
		lang, _ := m["language"].(string)
		content, _ := m["content"].(string)
		return &CodeNode{Language: lang, Content: content}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

func decodeElement(m map[string]any) (*ElementNode, error) {
	tag, _ := m["tag"].(string)
	if tag == "" {
		return nil, fmt.Errorf("element node has no tag")
	}
	el := &ElementNode{Tag: tag}
	if props, ok := m["props"].(map[string]any); ok {
		el.Props = make(map[string]Prop, len(props))
		for name, pv := range props {
			prop, err := decodeProp(pv)
			if err != nil {
				return nil, fmt.Errorf("prop %q: %w", name, err)
			}
			el.Props[name] = prop
		}
	}
	children, _ := m["children"].([]any)
	for i, cv := range children {
		child, err := DecodeNode(cv)
		if err != nil {
			return nil, fmt.Errorf("children[%d]: %w", i, err)
		}
		el.Children = append(el.Children, child)
	}
	return el, nil
}

func decodeIf(m map[string]any) (*IfNode, error) {
	cond, ok := m["condition"]
	if !ok {
		return nil, fmt.Errorf("if node has no condition")
	}
	expr, err := DecodeExpr(cond)
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	n := &IfNode{Condition: expr}
	if then, ok := m["then"]; ok && then != nil {
		if n.Then, err = DecodeNode(then); err != nil {
			return nil, fmt.Errorf("then: %w", err)
		}
	}
	if els, ok := m["else"]; ok && els != nil {
		if n.Else, err = DecodeNode(els); err != nil {
			return nil, fmt.Errorf("else: %w", err)
		}
	}
	return n, nil
}

func decodeEach(m map[string]any) (*EachNode, error) {
	items, ok := m["items"]
	if !ok {
		return nil, fmt.Errorf("each node has no items")
	}
	expr, err := DecodeExpr(items)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	n := &EachNode{Items: expr}
	n.As, _ = m["as"].(string)
	if n.As == "" {
		return nil, fmt.Errorf("each node has no as binding")
	}
	n.Index, _ = m["index"].(string)
	if body, ok := m["body"]; ok && body != nil {
		if n.Body, err = DecodeNode(body); err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
	}
	return n, nil
}

func decodeComponent(m map[string]any) (*ComponentNode, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("component node has no name")
	}
	n := &ComponentNode{Name: name}
	if props, ok := m["props"].(map[string]any); ok {
		n.Props = make(map[string]Expr, len(props))
		for pn, pv := range props {
			expr, err := DecodeExpr(pv)
			if err != nil {
				return nil, fmt.Errorf("prop %q: %w", pn, err)
			}
			n.Props[pn] = expr
		}
	}
	return n, nil
}

// decodeProp decides among the three prop forms: a scalar literal, an
// expression object (has "expr"), or an event handler (has "event").
func decodeProp(v any) (Prop, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return StaticProp{Value: v}, nil
	}
	if _, ok := m["expr"]; ok {
		expr, err := DecodeExpr(m)
		if err != nil {
			return nil, err
		}
		return ExprProp{Expr: expr}, nil
	}
	if _, ok := m["event"]; ok {
		return decodeEventProp(m)
	}
	return StaticProp{Value: v}, nil
}

func decodeEventProp(m map[string]any) (EventProp, error) {
	p := EventProp{}
	p.Event, _ = m["event"].(string)
	p.Action, _ = m["action"].(string)
	if payload, ok := m["payload"]; ok && payload != nil {
		pl, err := DecodePayload(payload)
		if err != nil {
			return EventProp{}, fmt.Errorf("payload: %w", err)
		}
		p.Payload = pl
	}
	if opts, ok := m["options"].(map[string]any); ok {
		var o EventOptions
		if err := mapstructure.Decode(opts, &o); err != nil {
			return EventProp{}, fmt.Errorf("options: %w", err)
		}
		p.Options = &o
	}
	return p, nil
}

// DecodePayload decodes an event payload: a single expression object,
// or a plain object whose fields are each a literal or expression.
func DecodePayload(v any) (*Payload, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return &Payload{Expr: Lit{Value: v}}, nil
	}
	if _, ok := m["expr"]; ok {
		expr, err := DecodeExpr(m)
		if err != nil {
			return nil, err
		}
		return &Payload{Expr: expr}, nil
	}
	fields := make(map[string]Expr, len(m))
	for name, fv := range m {
		expr, err := DecodeExpr(fv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = expr
	}
	return &Payload{Fields: fields}, nil
}

// DecodeExpr decodes one expression. Scalars and non-expression maps
// decode as literals, matching the authored format where a bare value
// stands for itself.
func DecodeExpr(v any) (Expr, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Lit{Value: v}, nil
	}
	kindRaw, tagged := m["expr"]
	if !tagged {
		return Lit{Value: v}, nil
	}
	kind, _ := kindRaw.(string)
	name, _ := m["name"].(string)
	path, _ := m["path"].(string)

	switch ExprKind(kind) {
	case ExprLit:
		return Lit{Value: m["value"]}, nil
	case ExprState:
		return StateRef{Name: name, Path: path}, nil
	case ExprVar:
		return VarRef{Name: name}, nil
	case ExprData:
		return DataRef{Name: name, Path: path}, nil
	case ExprImport:
		return ImportRef{Name: name, Path: path}, nil
	case ExprRoute:
		source, _ := m["source"].(string)
		if source == "" {
			source = string(RouteParam)
		}
		return RouteRef{Name: name, Source: RouteSource(source)}, nil
	case ExprGet:
		baseRaw, ok := m["base"]
		if !ok {
			return nil, fmt.Errorf("get expression has no base")
		}
		base, err := DecodeExpr(baseRaw)
		if err != nil {
			return nil, fmt.Errorf("get base: %w", err)
		}
		return Get{Base: base, Path: path}, nil
	case ExprBin:
		op, _ := m["op"].(string)
		left, err := DecodeExpr(m["left"])
		if err != nil {
			return nil, fmt.Errorf("bin left: %w", err)
		}
		right, err := DecodeExpr(m["right"])
		if err != nil {
			return nil, fmt.Errorf("bin right: %w", err)
		}
		return Bin{Op: op, Left: left, Right: right}, nil
	case ExprConcat:
		itemsRaw, _ := m["items"].([]any)
		items := make([]Expr, 0, len(itemsRaw))
		for i, iv := range itemsRaw {
			item, err := DecodeExpr(iv)
			if err != nil {
				return nil, fmt.Errorf("concat items[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return Concat{Items: items}, nil
	case ExprStyle:
		if name == "" {
			name, _ = m["preset"].(string)
		}
		st := StyleExpr{Name: name}
		variantsRaw, _ := m["variants"].(map[string]any)
		if variantsRaw == nil {
			variantsRaw, _ = m["props"].(map[string]any)
		}
		if len(variantsRaw) > 0 {
			st.Variants = make(map[string]Expr, len(variantsRaw))
			for k, vv := range variantsRaw {
				expr, err := DecodeExpr(vv)
				if err != nil {
					return nil, fmt.Errorf("style variant %q: %w", k, err)
				}
				st.Variants[k] = expr
			}
		}
		return st, nil
	case ExprCookie:
		return CookieRef{Name: name}, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
}
