package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/program"
)

func counterProgram() *program.CompiledProgram {
	return &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"count": {Type: "number", Initial: float64(0)},
		},
		Actions: map[string]*program.CompiledAction{
			"increment": {
				Name:  "increment",
				Steps: []program.Step{{Do: program.StepUpdate, Target: "count", Operation: "increment"}},
			},
		},
		View: &program.ElementNode{
			Tag: "div",
			Children: []program.Node{
				&program.ElementNode{
					Tag: "button",
					Props: map[string]program.Prop{
						"click": program.EventProp{Event: "click", Action: "increment"},
					},
					Children: []program.Node{
						&program.TextNode{Value: program.Lit{Value: "Increment"}},
					},
				},
				&program.ElementNode{
					Tag: "span",
					Children: []program.Node{
						&program.TextNode{Value: program.StateRef{Name: "count"}},
					},
				},
			},
		},
	}
}

func findTag(el *dom.Element, tag string) *dom.Element {
	if el.Tag == tag {
		return el
	}
	for _, c := range el.Children() {
		if child, ok := c.(*dom.Element); ok {
			if found := findTag(child, tag); found != nil {
				return found
			}
		}
	}
	return nil
}

func click(el *dom.Element) {
	el.DispatchEvent(&dom.Event{Type: "click", Target: el})
}

func TestMount_CounterClick(t *testing.T) {
	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), counterProgram(), Options{})
	require.NoError(t, err)

	btn := findTag(doc.Root(), "button")
	require.NotNil(t, btn)
	span := findTag(doc.Root(), "span")
	require.NotNil(t, span)
	assert.Equal(t, "0", span.TextContent())

	click(btn)

	assert.Equal(t, float64(1), app.GetState("count"))
	assert.Equal(t, "1", span.TextContent())

	click(btn)
	assert.Equal(t, "2", span.TextContent())
}

func TestMount_IfRegion(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"show": {Type: "boolean", Initial: false},
		},
		View: &program.ElementNode{
			Tag: "div",
			Children: []program.Node{
				&program.IfNode{
					Condition: program.StateRef{Name: "show"},
					Then:      &program.ElementNode{Tag: "span", Children: []program.Node{&program.TextNode{Value: program.Lit{Value: "yes"}}}},
					Else:      &program.TextNode{Value: program.Lit{Value: "no"}},
				},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)
	assert.Equal(t, "no", doc.Root().TextContent())
	assert.Nil(t, findTag(doc.Root(), "span"))

	require.NoError(t, app.SetState("show", true))
	assert.Equal(t, "yes", doc.Root().TextContent())
	assert.NotNil(t, findTag(doc.Root(), "span"))

	require.NoError(t, app.SetState("show", false))
	assert.Equal(t, "no", doc.Root().TextContent())
	assert.Nil(t, findTag(doc.Root(), "span"))
}

func TestMount_EachRegion(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"items": {Type: "array", Initial: []any{"a", "b"}},
		},
		View: &program.ElementNode{
			Tag: "ul",
			Children: []program.Node{
				&program.EachNode{
					Items: program.StateRef{Name: "items"},
					As:    "item",
					Index: "i",
					Body: &program.ElementNode{
						Tag: "li",
						Children: []program.Node{
							&program.TextNode{Value: program.Concat{Items: []program.Expr{
								program.VarRef{Name: "i"},
								program.Lit{Value: ":"},
								program.VarRef{Name: "item"},
							}}},
						},
					},
				},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	ul := findTag(doc.Root(), "ul")
	require.NotNil(t, ul)
	assert.Equal(t, "0:a1:b", ul.TextContent())

	require.NoError(t, app.SetState("items", []any{"x", "y", "z"}))
	assert.Equal(t, "0:x1:y2:z", ul.TextContent())

	require.NoError(t, app.SetState("items", []any{}))
	assert.Equal(t, "", ul.TextContent())
}

func TestMount_ExprPropBinding(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"disabled": {Type: "boolean", Initial: true},
			"cls":      {Type: "string", Initial: "btn"},
		},
		View: &program.ElementNode{
			Tag: "button",
			Props: map[string]program.Prop{
				"disabled": program.ExprProp{Expr: program.StateRef{Name: "disabled"}},
				"class":    program.ExprProp{Expr: program.StateRef{Name: "cls"}},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	btn := findTag(doc.Root(), "button")
	require.NotNil(t, btn)
	_, ok := btn.Attribute("disabled")
	assert.True(t, ok)
	cls, _ := btn.Attribute("class")
	assert.Equal(t, "btn", cls)

	require.NoError(t, app.SetState("disabled", false))
	_, ok = btn.Attribute("disabled")
	assert.False(t, ok)

	require.NoError(t, app.SetState("cls", "btn active"))
	cls, _ = btn.Attribute("class")
	assert.Equal(t, "btn active", cls)
}

func TestMount_InputValuePayload(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"query": {Type: "string", Initial: ""},
		},
		Actions: map[string]*program.CompiledAction{
			"setQuery": {
				Name:  "setQuery",
				Steps: []program.Step{{Do: program.StepSet, Target: "query", Value: program.VarRef{Name: "payload"}}},
			},
		},
		View: &program.ElementNode{
			Tag: "input",
			Props: map[string]program.Prop{
				"input": program.EventProp{
					Event:   "input",
					Action:  "setQuery",
					Payload: &program.Payload{Expr: program.VarRef{Name: "value"}},
				},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	input := findTag(doc.Root(), "input")
	require.NotNil(t, input)
	input.Value = "hello"
	input.DispatchEvent(&dom.Event{Type: "input", Target: input})

	assert.Equal(t, "hello", app.GetState("query"))
}

func fileUploadProgram(inputType string) *program.CompiledProgram {
	return &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"uploaded": {Type: "array", Initial: nil},
		},
		Actions: map[string]*program.CompiledAction{
			"upload": {
				Name:  "upload",
				Steps: []program.Step{{Do: program.StepSet, Target: "uploaded", Value: program.VarRef{Name: "payload"}}},
			},
		},
		View: &program.ElementNode{
			Tag: "input",
			Props: map[string]program.Prop{
				"type": program.StaticProp{Value: inputType},
				"change": program.EventProp{
					Event:   "change",
					Action:  "upload",
					Payload: &program.Payload{Expr: program.VarRef{Name: "files"}},
				},
			},
		},
	}
}

func TestMount_FileInputFiles(t *testing.T) {
	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), fileUploadProgram("file"), Options{})
	require.NoError(t, err)

	input := findTag(doc.Root(), "input")
	require.NotNil(t, input)
	input.SetFiles([]*dom.File{
		{Name: "a.txt", Size: 3, Type: "text/plain"},
		{Name: "b.png", Size: 1024, Type: "image/png"},
	})
	input.DispatchEvent(&dom.Event{Type: "change", Target: input})

	files, ok := app.GetState("uploaded").([]any)
	require.True(t, ok)
	require.Len(t, files, 2)

	first, ok := files[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.txt", first["name"])
	assert.Equal(t, float64(3), first["size"])
	assert.Equal(t, "text/plain", first["type"])
	assert.NotNil(t, first["_file"])
}

func TestMount_TextInputHasNoFiles(t *testing.T) {
	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), fileUploadProgram("text"), Options{})
	require.NoError(t, err)

	input := findTag(doc.Root(), "input")
	require.NotNil(t, input)
	input.DispatchEvent(&dom.Event{Type: "change", Target: input})

	assert.Nil(t, app.GetState("uploaded"))
}

func TestMount_IntersectOnce(t *testing.T) {
	prog := counterProgram()
	prog.View = &program.ElementNode{
		Tag: "div",
		Props: map[string]program.Prop{
			"intersect": program.EventProp{
				Event:   "intersect",
				Action:  "increment",
				Options: &program.EventOptions{Once: true, Threshold: 0.5},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	div := findTag(doc.Root(), "div")
	require.NotNil(t, div)

	doc.TriggerIntersection(div, 0.3)
	assert.Equal(t, float64(0), app.GetState("count"))

	doc.TriggerIntersection(div, 0.8)
	assert.Equal(t, float64(1), app.GetState("count"))

	doc.TriggerIntersection(div, 0.9)
	assert.Equal(t, float64(1), app.GetState("count"))
}

func TestMount_IntersectPayloadLocals(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"visible": {Type: "boolean", Initial: false},
			"ratio":   {Type: "number", Initial: float64(0)},
		},
		Actions: map[string]*program.CompiledAction{
			"seen": {
				Name: "seen",
				Steps: []program.Step{
					{Do: program.StepSet, Target: "visible", Value: program.VarRef{Name: "shown"}},
					{Do: program.StepSet, Target: "ratio", Value: program.VarRef{Name: "amount"}},
				},
			},
		},
		View: &program.ElementNode{
			Tag: "section",
			Props: map[string]program.Prop{
				"intersect": program.EventProp{
					Event:  "intersect",
					Action: "seen",
					Payload: &program.Payload{Fields: map[string]program.Expr{
						"shown":  program.VarRef{Name: "isIntersecting"},
						"amount": program.VarRef{Name: "intersectionRatio"},
					}},
				},
			},
		},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	section := findTag(doc.Root(), "section")
	require.NotNil(t, section)
	doc.TriggerIntersection(section, 0.8)

	assert.Equal(t, true, app.GetState("visible"))
	assert.Equal(t, 0.8, app.GetState("ratio"))
}

func TestMount_EventOnce(t *testing.T) {
	prog := counterProgram()
	view := prog.View.(*program.ElementNode)
	btn := view.Children[0].(*program.ElementNode)
	btn.Props["click"] = program.EventProp{
		Event:   "click",
		Action:  "increment",
		Options: &program.EventOptions{Once: true},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	el := findTag(doc.Root(), "button")
	click(el)
	click(el)
	assert.Equal(t, float64(1), app.GetState("count"))
}

func TestDispatch_UpdateOperations(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"on":   {Type: "boolean", Initial: false},
			"n":    {Type: "number", Initial: float64(10)},
			"list": {Type: "array", Initial: []any{"a"}},
		},
		Actions: map[string]*program.CompiledAction{
			"toggle": {Name: "toggle", Steps: []program.Step{{Do: program.StepUpdate, Target: "on", Operation: "toggle"}}},
			"dec":    {Name: "dec", Steps: []program.Step{{Do: program.StepUpdate, Target: "n", Operation: "decrement"}}},
			"push":   {Name: "push", Steps: []program.Step{{Do: program.StepUpdate, Target: "list", Operation: "append"}}},
		},
		View: &program.ElementNode{Tag: "div"},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	require.NoError(t, app.Dispatch("toggle", nil))
	assert.Equal(t, true, app.GetState("on"))
	require.NoError(t, app.Dispatch("toggle", nil))
	assert.Equal(t, false, app.GetState("on"))

	require.NoError(t, app.Dispatch("dec", nil))
	assert.Equal(t, float64(9), app.GetState("n"))

	require.NoError(t, app.Dispatch("push", "b"))
	assert.Equal(t, []any{"a", "b"}, app.GetState("list"))

	err = app.Dispatch("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDispatch_PayloadFieldsAsLocals(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"name": {Type: "string", Initial: ""},
		},
		Actions: map[string]*program.CompiledAction{
			"rename": {
				Name:  "rename",
				Steps: []program.Step{{Do: program.StepSet, Target: "name", Value: program.VarRef{Name: "next"}}},
			},
		},
		View: &program.ElementNode{Tag: "div"},
	}

	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	require.NoError(t, app.Dispatch("rename", map[string]any{"next": "Alice"}))
	assert.Equal(t, "Alice", app.GetState("name"))
}

func TestDestroy_Idempotent(t *testing.T) {
	doc := dom.NewDocument()
	app, err := Mount(doc, doc.Root(), counterProgram(), Options{})
	require.NoError(t, err)

	btn := findTag(doc.Root(), "button")
	app.Destroy()

	assert.Empty(t, doc.Root().Children())
	click(btn)
	assert.Equal(t, float64(0), app.GetState("count"))
	assert.NotPanics(t, func() { app.Destroy() })
}

func TestHydrate_AdoptsServerDOM(t *testing.T) {
	doc := dom.NewDocument()
	div := doc.CreateElement("div")
	btn := doc.CreateElement("button")
	btn.AppendChild(doc.CreateText("Increment"))
	span := doc.CreateElement("span")
	span.AppendChild(doc.CreateText("0"))
	div.AppendChild(btn)
	div.AppendChild(span)
	doc.Root().AppendChild(div)

	app, err := Hydrate(doc, doc.Root(), counterProgram(), Options{})
	require.NoError(t, err)

	// The server-rendered nodes are adopted, not replaced.
	assert.Same(t, btn, findTag(doc.Root(), "button"))
	assert.Same(t, span, findTag(doc.Root(), "span"))

	click(btn)
	assert.Equal(t, float64(1), app.GetState("count"))
	assert.Equal(t, "1", span.TextContent())
}

func TestHydrate_ParsedFragment(t *testing.T) {
	doc := dom.NewDocument()
	nodes, err := doc.ParseFragment("<div><button>Increment</button><span>0</span></div>")
	require.NoError(t, err)
	for _, n := range nodes {
		doc.Root().AppendChild(n)
	}

	app, err := Hydrate(doc, doc.Root(), counterProgram(), Options{})
	require.NoError(t, err)

	btn := findTag(doc.Root(), "button")
	require.NotNil(t, btn)
	click(btn)
	assert.Equal(t, "1", findTag(doc.Root(), "span").TextContent())
	assert.Equal(t, float64(1), app.GetState("count"))
}

func TestHydrate_WithoutRouteContext(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State:   map[string]program.StateField{},
		View: &program.ElementNode{
			Tag: "p",
			Children: []program.Node{
				&program.TextNode{Value: program.RouteRef{Name: "slug", Source: program.RouteParam}},
			},
		},
	}

	doc := dom.NewDocument()
	p := doc.CreateElement("p")
	p.AppendChild(doc.CreateText(""))
	doc.Root().AppendChild(p)

	_, err := Hydrate(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)
	assert.Equal(t, "", p.TextContent())
}

func TestHydrate_FallbackOnDivergence(t *testing.T) {
	doc := dom.NewDocument()
	// Stale markup: the span is missing entirely.
	div := doc.CreateElement("div")
	btn := doc.CreateElement("button")
	btn.AppendChild(doc.CreateText("Increment"))
	div.AppendChild(btn)
	doc.Root().AppendChild(div)

	app, err := Hydrate(doc, doc.Root(), counterProgram(), Options{})
	require.NoError(t, err)

	span := findTag(doc.Root(), "span")
	require.NotNil(t, span)
	assert.Equal(t, "0", span.TextContent())

	click(btn)
	assert.Equal(t, "1", span.TextContent())
	assert.Equal(t, float64(1), app.GetState("count"))
}

func TestHydrate_RouteParamsReachHandlers(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"current": {Type: "string", Initial: ""},
		},
		Actions: map[string]*program.CompiledAction{
			"track": {
				Name:  "track",
				Steps: []program.Step{{Do: program.StepSet, Target: "current", Value: program.VarRef{Name: "payload"}}},
			},
		},
		View: &program.ElementNode{
			Tag: "a",
			Props: map[string]program.Prop{
				"click": program.EventProp{
					Event:   "click",
					Action:  "track",
					Payload: &program.Payload{Expr: program.RouteRef{Name: "slug", Source: program.RouteParam}},
				},
			},
		},
	}

	doc := dom.NewDocument()
	a := doc.CreateElement("a")
	doc.Root().AppendChild(a)

	app, err := Hydrate(doc, doc.Root(), prog, Options{
		Route: &program.RouteContext{Params: map[string]string{"slug": "hello-world"}},
	})
	require.NoError(t, err)

	click(a)
	assert.Equal(t, "hello-world", app.GetState("current"))
}

func TestMount_ComponentInstantiation(t *testing.T) {
	prog := &program.CompiledProgram{
		Version: program.Version,
		State: map[string]program.StateField{
			"title": {Type: "string", Initial: "Welcome"},
		},
		Components: map[string]*program.Component{
			"Card": {
				Props: map[string]program.ComponentProp{
					"heading": {Type: "string", Required: true},
				},
				View: &program.ElementNode{
					Tag: "h2",
					Children: []program.Node{
						&program.TextNode{Value: program.VarRef{Name: "heading"}},
					},
				},
			},
		},
		View: &program.ElementNode{
			Tag: "div",
			Children: []program.Node{
				&program.ComponentNode{
					Name:  "Card",
					Props: map[string]program.Expr{"heading": program.StateRef{Name: "title"}},
				},
			},
		},
	}

	doc := dom.NewDocument()
	_, err := Mount(doc, doc.Root(), prog, Options{})
	require.NoError(t, err)

	h2 := findTag(doc.Root(), "h2")
	require.NotNil(t, h2)
	assert.Equal(t, "Welcome", h2.TextContent())
}
