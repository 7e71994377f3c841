package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuuichieguchi/constela/pkg/diag"
	"github.com/yuuichieguchi/constela/pkg/program"
)

func mustDecode(t *testing.T, src string) *program.Program {
	t.Helper()
	p, err := program.Decode([]byte(src))
	require.NoError(t, err)
	return p
}

func codesOf(errs []*diag.Error) []diag.Code {
	codes := make([]diag.Code, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

func findCode(errs []*diag.Error, code diag.Code) *diag.Error {
	for _, e := range errs {
		if e.Code == code {
			return e
		}
	}
	return nil
}

func TestAnalyze_ValidProgram(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"count": {"type": "number", "initial": 0}},
		"actions": [{"name": "inc", "steps": [{"do": "update", "target": "count", "operation": "increment"}]}],
		"view": {
			"kind": "element", "tag": "button",
			"props": {"onClick": {"event": "click", "action": "inc"}},
			"children": [{"kind": "text", "value": {"expr": "state", "name": "count"}}]
		}
	}`)

	ctx, errs := Analyze(p)
	require.Empty(t, errs)
	require.NotNil(t, ctx)
	assert.True(t, ctx.StateNames["count"])
	assert.True(t, ctx.ActionNames["inc"])
}

func TestAnalyze_UnsupportedVersion(t *testing.T) {
	p := mustDecode(t, `{"version": "2.0", "view": {"kind": "element", "tag": "div"}}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.UnsupportedVersion)
	require.NotNil(t, e)
	assert.Equal(t, "/version", e.Path)
	assert.Equal(t, "1.0", e.Expected)
	assert.Equal(t, "2.0", e.Actual)
}

func TestAnalyze_DuplicateActions(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"count": {"type": "number", "initial": 0}},
		"actions": [
			{"name": "inc", "steps": [{"do": "update", "target": "count", "operation": "increment"}]},
			{"name": "inc", "steps": [{"do": "set", "target": "count", "value": 0}]},
			{"name": "inc", "steps": [{"do": "set", "target": "count", "value": 1}]}
		],
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	var dups []*diag.Error
	for _, e := range errs {
		if e.Code == diag.DuplicateAction {
			dups = append(dups, e)
		}
	}
	// Every occurrence after the first is reported.
	require.Len(t, dups, 2)
	assert.Equal(t, "/actions/1", dups[0].Path)
	assert.Equal(t, "/actions/2", dups[1].Path)
}

func TestAnalyze_UndefinedState(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"count": {"type": "number", "initial": 0}},
		"view": {
			"kind": "element", "tag": "div",
			"children": [{"kind": "text", "value": {"expr": "state", "name": "cont"}}]
		}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.UndefinedState)
	require.NotNil(t, e)
	assert.Equal(t, "/view/children/0/value", e.Path)
	assert.Equal(t, "count", e.Suggestion)
}

func TestAnalyze_UndefinedAction(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"actions": [{"name": "inc", "steps": []}],
		"view": {
			"kind": "element", "tag": "button",
			"props": {"onClick": {"event": "click", "action": "incr"}}
		}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.UndefinedAction)
	require.NotNil(t, e)
	assert.Equal(t, "/view/props/onClick", e.Path)
	assert.Equal(t, "inc", e.Suggestion)
}

func TestAnalyze_EachScoping(t *testing.T) {
	// The binding is visible inside the body but not outside it.
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"items": {"type": "array", "initial": []}},
		"view": {
			"kind": "element", "tag": "ul",
			"children": [
				{
					"kind": "each",
					"items": {"expr": "state", "name": "items"},
					"as": "item", "index": "i",
					"body": {"kind": "text", "value": {"expr": "var", "name": "item"}}
				},
				{"kind": "text", "value": {"expr": "var", "name": "item"}}
			]
		}
	}`)

	_, errs := Analyze(p)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.VarUndefined, errs[0].Code)
	assert.Equal(t, "/view/children/1/value", errs[0].Path)
}

func TestAnalyze_EachShadowing(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"rows": {"type": "array", "initial": []}},
		"view": {
			"kind": "each",
			"items": {"expr": "state", "name": "rows"},
			"as": "item",
			"body": {
				"kind": "each",
				"items": {"expr": "var", "name": "item"},
				"as": "item",
				"body": {"kind": "text", "value": {"expr": "var", "name": "item"}}
			}
		}
	}`)

	_, errs := Analyze(p)
	assert.Empty(t, errs)
}

func TestAnalyze_EachUndefinedItemsStillWalksBody(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"view": {
			"kind": "each",
			"items": {"expr": "state", "name": "missing"},
			"as": "item",
			"body": {"kind": "text", "value": {"expr": "var", "name": "other"}}
		}
	}`)

	_, errs := Analyze(p)
	assert.NotNil(t, findCode(errs, diag.UndefinedState))
	// The body was walked despite the bad items expression.
	assert.NotNil(t, findCode(errs, diag.VarUndefined))
}

func TestAnalyze_DataNotDefinedVsUndefinedData(t *testing.T) {
	noData := mustDecode(t, `{
		"version": "1.0",
		"view": {"kind": "text", "value": {"expr": "data", "name": "posts"}}
	}`)
	_, errs := Analyze(noData)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.DataNotDefined, errs[0].Code)

	withData := mustDecode(t, `{
		"version": "1.0",
		"data": {"articles": {"type": "glob", "pattern": "content/*.json"}},
		"view": {"kind": "text", "value": {"expr": "data", "name": "posts"}}
	}`)
	_, errs = Analyze(withData)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.UndefinedData, errs[0].Code)
}

func TestAnalyze_InvalidDataSources(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"data": {
			"a": {"type": "glob"},
			"b": {"type": "file"},
			"c": {"type": "api"},
			"d": {"type": "ftp", "path": "x"},
			"e": {"type": "file", "path": "x.json", "transform": "xslt"}
		},
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	var invalid []*diag.Error
	for _, e := range errs {
		if e.Code == diag.InvalidDataSource {
			invalid = append(invalid, e)
		}
	}
	require.Len(t, invalid, 5)
	assert.Equal(t, "/data/a", invalid[0].Path)
	assert.Equal(t, "/data/e", invalid[4].Path)
}

func TestAnalyze_SupportedTransforms(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"data": {
			"a": {"type": "file", "path": "a.txt", "transform": "raw"},
			"b": {"type": "file", "path": "b.txt", "transform": "json"},
			"c": {"type": "glob", "pattern": "content/*.yml", "transform": "yaml"},
			"d": {"type": "glob", "pattern": "content/*.md", "transform": "frontmatter"}
		},
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	assert.Empty(t, errs)
}

func TestAnalyze_SetStepWithoutValue(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"state": {"query": {"type": "string", "initial": ""}},
		"actions": [
			{"name": "reset", "steps": [{"do": "set", "target": "query"}]}
		],
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.SchemaInvalid)
	require.NotNil(t, e)
	assert.Equal(t, "/actions/0/steps/0/value", e.Path)
}

func TestAnalyze_GetStaticPaths(t *testing.T) {
	noData := mustDecode(t, `{
		"version": "1.0",
		"route": {"path": "/posts/[slug]", "getStaticPaths": {"source": "posts", "params": {"slug": {"expr": "var", "name": "item"}}}},
		"view": {"kind": "element", "tag": "div"}
	}`)
	_, errs := Analyze(noData)
	e := findCode(errs, diag.DataNotDefined)
	require.NotNil(t, e)
	assert.Equal(t, "/route/getStaticPaths/source", e.Path)

	wrongSource := mustDecode(t, `{
		"version": "1.0",
		"data": {"articles": {"type": "glob", "pattern": "content/*.json"}},
		"route": {"path": "/posts/[slug]", "getStaticPaths": {"source": "posts", "params": {}}},
		"view": {"kind": "element", "tag": "div"}
	}`)
	_, errs = Analyze(wrongSource)
	assert.NotNil(t, findCode(errs, diag.UndefinedDataSource))
}

func TestAnalyze_GetStaticPathsParamsAreWalked(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"data": {"posts": {"type": "glob", "pattern": "content/*.json"}},
		"route": {"path": "/posts/[slug]", "getStaticPaths": {"source": "posts", "params": {"slug": {"expr": "state", "name": "nope"}}}},
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.UndefinedState)
	require.NotNil(t, e)
	assert.Equal(t, "/route/getStaticPaths/params/slug", e.Path)
}

func TestAnalyze_RouteParams(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"route": {"path": "/posts/[slug]"},
		"view": {"kind": "text", "value": {"expr": "route", "name": "slub", "source": "param"}}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.ParamUndefined)
	require.NotNil(t, e)
	assert.Equal(t, "slug", e.Suggestion)
}

func TestAnalyze_ComponentValidation(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"components": {
			"Card": {
				"props": {"title": {"type": "string", "required": true}},
				"view": {"kind": "text", "value": {"expr": "var", "name": "title"}}
			}
		},
		"view": {
			"kind": "element", "tag": "div",
			"children": [
				{"kind": "component", "name": "Banner", "props": {}},
				{"kind": "component", "name": "Card", "props": {}},
				{"kind": "component", "name": "Card", "props": {"title": 42}}
			]
		}
	}`)

	_, errs := Analyze(p)
	assert.NotNil(t, findCode(errs, diag.ComponentNotFound))
	assert.NotNil(t, findCode(errs, diag.ComponentPropMissed))

	typeErr := findCode(errs, diag.ComponentPropType)
	require.NotNil(t, typeErr)
	assert.Equal(t, "string", typeErr.Expected)
	assert.Equal(t, "number", typeErr.Actual)
}

func TestAnalyze_ComponentCycle(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"components": {
			"A": {"view": {"kind": "component", "name": "B"}},
			"B": {"view": {"kind": "component", "name": "A"}}
		},
		"view": {"kind": "element", "tag": "div"}
	}`)

	_, errs := Analyze(p)
	e := findCode(errs, diag.ComponentCycle)
	require.NotNil(t, e)
	assert.Contains(t, e.Message, "->")
}

func TestAnalyze_ErrorsInTraversalOrder(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"view": {
			"kind": "element", "tag": "div",
			"children": [
				{"kind": "text", "value": {"expr": "state", "name": "a"}},
				{"kind": "text", "value": {"expr": "state", "name": "b"}}
			]
		}
	}`)

	_, errs := Analyze(p)
	require.Len(t, errs, 2)
	assert.Equal(t, "/view/children/0/value", errs[0].Path)
	assert.Equal(t, "/view/children/1/value", errs[1].Path)
}

func TestAnalyzeLayout_Slots(t *testing.T) {
	lp, err := program.DecodeLayout([]byte(`{
		"version": "1.0",
		"type": "layout",
		"view": {
			"kind": "element", "tag": "div",
			"children": [
				{"kind": "slot", "name": "header"},
				{"kind": "slot"}
			]
		}
	}`))
	require.NoError(t, err)

	ctx, errs := AnalyzeLayout(lp)
	require.Empty(t, errs)
	assert.True(t, ctx.HasDefaultSlot)
	assert.True(t, ctx.SlotNames["header"])
	assert.False(t, ctx.SlotNames["default"])
}

func TestAnalyze_BinAndConcatWalked(t *testing.T) {
	p := mustDecode(t, `{
		"version": "1.0",
		"view": {"kind": "text", "value": {
			"expr": "concat",
			"items": [
				{"expr": "lit", "value": "x"},
				{"expr": "bin", "op": "+", "left": {"expr": "state", "name": "a"}, "right": {"expr": "state", "name": "b"}}
			]
		}}
	}`)

	_, errs := Analyze(p)
	require.Len(t, errs, 2)
	assert.Equal(t, "/view/value/items/1/left", errs[0].Path)
	assert.Equal(t, "/view/value/items/1/right", errs[1].Path)
	assert.Equal(t, []diag.Code{diag.UndefinedState, diag.UndefinedState}, codesOf(errs))
}
