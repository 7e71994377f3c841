package eval

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/yuuichieguchi/constela/pkg/program"
)

// StateReader is the read side of the state store the evaluator needs.
type StateReader interface {
	Get(name string) (any, bool)
}

// Context bundles everything an expression can read from. Zero-value
// fields are valid: a missing route or cookie jar degrades to empty
// values, never a failure.
type Context struct {
	State   StateReader
	Locals  *Scope
	Route   *program.RouteContext
	Data    map[string]any
	Imports map[string]any
	Cookies map[string]string
}

// Evaluate computes the value of expr under ctx. It is total over the
// expression union; an expression kind outside the union is a
// programmer error and returns an error rather than a silent nil.
func Evaluate(expr program.Expr, ctx *Context) (any, error) {
	switch e := expr.(type) {
	case program.Lit:
		return e.Value, nil
	case program.StateRef:
		var v any
		if ctx.State != nil {
			v, _ = ctx.State.Get(e.Name)
		}
		return Traverse(v, e.Path), nil
	case program.VarRef:
		v, _ := ctx.Locals.Lookup(e.Name)
		return v, nil
	case program.DataRef:
		return Traverse(ctx.Data[e.Name], e.Path), nil
	case program.ImportRef:
		return Traverse(ctx.Imports[e.Name], e.Path), nil
	case program.RouteRef:
		return evalRoute(e, ctx.Route), nil
	case program.Get:
		base, err := Evaluate(e.Base, ctx)
		if err != nil {
			return nil, err
		}
		return Traverse(base, e.Path), nil
	case program.Bin:
		return evalBin(e, ctx)
	case program.Concat:
		var b strings.Builder
		for _, item := range e.Items {
			v, err := Evaluate(item, ctx)
			if err != nil {
				return nil, err
			}
			b.WriteString(Stringify(v))
		}
		return b.String(), nil
	case program.StyleExpr:
		return evalStyle(e, ctx)
	case program.CookieRef:
		return ctx.Cookies[e.Name], nil
	default:
		return nil, fmt.Errorf("unknown expression kind %T", expr)
	}
}

// EvaluatePayload evaluates an event payload: either one expression or
// an object evaluated field by field. A nil payload yields nil.
func EvaluatePayload(pl *program.Payload, ctx *Context) (any, error) {
	if pl == nil {
		return nil, nil
	}
	if pl.Expr != nil {
		return Evaluate(pl.Expr, ctx)
	}
	out := make(map[string]any, len(pl.Fields))
	for name, expr := range pl.Fields {
		v, err := Evaluate(expr, ctx)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// evalRoute reads from the route context per source. A missing route
// context or key yields an empty string, never a failure; hydration
// without a route depends on this.
func evalRoute(e program.RouteRef, route *program.RouteContext) string {
	if route == nil {
		return ""
	}
	switch e.Source {
	case program.RouteParam:
		return route.Params[e.Name]
	case program.RouteQuery:
		return route.Query[e.Name]
	case program.RoutePath:
		return route.Path
	default:
		return ""
	}
}

func evalBin(e program.Bin, ctx *Context) (any, error) {
	left, err := Evaluate(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(e.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return valueEqual(left, right), nil
	case "!=":
		return !valueEqual(left, right), nil
	case "&&":
		return Truthy(left) && Truthy(right), nil
	case "||":
		return Truthy(left) || Truthy(right), nil
	case "+":
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok || rok {
			if !lok {
				ls = Stringify(left)
			}
			if !rok {
				rs = Stringify(right)
			}
			return ls + rs, nil
		}
		return toNumber(left) + toNumber(right), nil
	case "-":
		return toNumber(left) - toNumber(right), nil
	case "*":
		return toNumber(left) * toNumber(right), nil
	case "/":
		d := toNumber(right)
		if d == 0 {
			return float64(0), nil
		}
		return toNumber(left) / d, nil
	case "<":
		return toNumber(left) < toNumber(right), nil
	case "<=":
		return toNumber(left) <= toNumber(right), nil
	case ">":
		return toNumber(left) > toNumber(right), nil
	case ">=":
		return toNumber(left) >= toNumber(right), nil
	default:
		return nil, fmt.Errorf("unknown binary operator %q", e.Op)
	}
}

// evalStyle assembles a class string: the preset name followed by one
// "{preset}-{variant}-{value}" class per variant, in sorted variant
// order.
func evalStyle(e program.StyleExpr, ctx *Context) (string, error) {
	classes := []string{e.Name}
	keys := make([]string, 0, len(e.Variants))
	for k := range e.Variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := Evaluate(e.Variants[k], ctx)
		if err != nil {
			return "", err
		}
		if s := Stringify(v); s != "" {
			classes = append(classes, e.Name+"-"+k+"-"+s)
		}
	}
	return strings.Join(classes, " "), nil
}

// Traverse walks path segments into a value. Segments are dot- or
// slash-delimited; a purely numeric segment indexes an array. Missing
// intermediate keys yield nil.
func Traverse(v any, path string) any {
	if path == "" {
		return v
	}
	for _, seg := range splitSegments(path) {
		if v == nil {
			return nil
		}
		switch cur := v.(type) {
		case map[string]any:
			v = cur[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur) {
				return nil
			}
			v = cur[idx]
		default:
			return nil
		}
	}
	return v
}

func splitSegments(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '/'
	})
}

// valueEqual is value equality over the DSL's runtime values, not
// identity: numbers compare numerically regardless of Go
// representation, composites compare structurally.
func valueEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if an, aok := numeric(a); aok {
		if bn, bok := numeric(b); bok {
			return an == bn
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toNumber(v any) float64 {
	if n, ok := numeric(v); ok {
		return n
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	if b, ok := v.(bool); ok && b {
		return 1
	}
	return 0
}

// Truthy maps a runtime value onto conditional truth: nil, false, zero
// and the empty string are falsy, everything else truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		if n, ok := numeric(v); ok {
			return n != 0
		}
		return true
	}
}

// Stringify coerces a runtime value to its display string. Whole
// numbers render without a decimal point.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		if n, ok := numeric(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return fmt.Sprintf("%v", v)
	}
}

// StateDeps collects the state field names an expression reads, in
// first-appearance order. The renderer subscribes a binding to exactly
// these fields.
func StateDeps(expr program.Expr, acc []string) []string {
	switch e := expr.(type) {
	case program.StateRef:
		for _, existing := range acc {
			if existing == e.Name {
				return acc
			}
		}
		acc = append(acc, e.Name)
	case program.Get:
		acc = StateDeps(e.Base, acc)
	case program.Bin:
		acc = StateDeps(e.Left, acc)
		acc = StateDeps(e.Right, acc)
	case program.Concat:
		for _, item := range e.Items {
			acc = StateDeps(item, acc)
		}
	case program.StyleExpr:
		for _, v := range e.Variants {
			acc = StateDeps(v, acc)
		}
	}
	return acc
}
