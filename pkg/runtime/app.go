package runtime

import (
	"fmt"

	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/eval"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// Options carries the host-supplied context an app is constructed or
// hydrated with. Every field may be nil; missing runtime inputs degrade
// to evaluator defaults rather than failing.
type Options struct {
	Route   *program.RouteContext
	Data    map[string]any
	Cookies map[string]string

	// OnError receives evaluation and dispatch errors that surface
	// inside event handlers and bindings, where no caller can observe a
	// return value. Nil discards them.
	OnError func(error)
}

// App is a mounted or hydrated program instance. It owns the state
// store and the resource arena of every subscription, listener and
// observer registered during render.
type App struct {
	doc   *dom.Document
	root  *dom.Element
	prog  *program.CompiledProgram
	store *Store
	opts  Options

	cleanups  *cleanups
	destroyed bool
}

// Mount renders a compiled program into root, creating fresh DOM.
func Mount(doc *dom.Document, root *dom.Element, prog *program.CompiledProgram, opts Options) (*App, error) {
	app := newApp(doc, root, prog, opts)
	r := &renderer{app: app}
	r.renderNode(prog.View, root, nil, app.cleanups)
	return app, nil
}

// Hydrate binds a compiled program onto existing server-rendered DOM
// under root, adopting matching nodes instead of creating them.
func Hydrate(doc *dom.Document, root *dom.Element, prog *program.CompiledProgram, opts Options) (*App, error) {
	app := newApp(doc, root, prog, opts)
	r := &renderer{app: app}
	pos := 0
	r.hydrateNode(prog.View, root, &pos, nil, app.cleanups)
	return app, nil
}

func newApp(doc *dom.Document, root *dom.Element, prog *program.CompiledProgram, opts Options) *App {
	return &App{
		doc:      doc,
		root:     root,
		prog:     prog,
		store:    NewStore(prog.State),
		opts:     opts,
		cleanups: &cleanups{},
	}
}

// Destroy runs every registered cleanup exactly once and detaches the
// rendered DOM. Calling it again is a no-op.
func (a *App) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	a.cleanups.run()
	for _, child := range append([]dom.Node(nil), a.root.Children()...) {
		a.root.RemoveChild(child)
	}
}

// GetState returns the current value of a state field, or nil when the
// field is not declared.
func (a *App) GetState(name string) any {
	v, _ := a.store.Get(name)
	return v
}

// SetState assigns a state field, triggering bound re-evaluation.
func (a *App) SetState(name string, value any) error {
	return a.store.Set(name, value)
}

// Subscribe registers a callback on a state field; see Store.Subscribe.
func (a *App) Subscribe(name string, fn func(any)) (func(), error) {
	return a.store.Subscribe(name, fn)
}

func (a *App) reportError(err error) {
	if a.opts.OnError != nil {
		a.opts.OnError(err)
	}
}

// evalContext builds the evaluation context for the given locals scope.
// This is the single place route, data and cookie context are threaded
// into evaluation; every binding and every event dispatch goes through
// it, so no call site can drop the route.
func (a *App) evalContext(locals *eval.Scope) *eval.Context {
	return &eval.Context{
		State:   a.store,
		Locals:  locals,
		Route:   a.opts.Route,
		Data:    a.opts.Data,
		Imports: a.prog.ImportData,
		Cookies: a.opts.Cookies,
	}
}

// Dispatch runs a named action with an already-evaluated payload.
func (a *App) Dispatch(action string, payload any) error {
	act, ok := a.prog.Actions[action]
	if !ok {
		return fmt.Errorf("action %q is not defined", action)
	}
	locals := eval.NewScope(payloadLocals(payload))
	for i, step := range act.Steps {
		if err := a.applyStep(step, locals); err != nil {
			return fmt.Errorf("action %q step %d: %w", action, i, err)
		}
	}
	return nil
}

// payloadLocals exposes the payload to step value expressions: always
// under "payload", plus each field of an object payload as its own
// local.
func payloadLocals(payload any) map[string]any {
	locals := map[string]any{"payload": payload}
	if fields, ok := payload.(map[string]any); ok {
		for k, v := range fields {
			if k != "payload" {
				locals[k] = v
			}
		}
	}
	return locals
}

func (a *App) applyStep(step program.Step, locals *eval.Scope) error {
	switch step.Do {
	case program.StepSet:
		v, err := eval.Evaluate(step.Value, a.evalContext(locals))
		if err != nil {
			return err
		}
		return a.store.Set(step.Target, v)
	case program.StepUpdate:
		return a.applyUpdate(step, locals)
	default:
		return fmt.Errorf("unknown step do %q", step.Do)
	}
}

func (a *App) applyUpdate(step program.Step, locals *eval.Scope) error {
	cur, ok := a.store.Get(step.Target)
	if !ok {
		return fmt.Errorf("state field %q is not declared", step.Target)
	}
	switch step.Operation {
	case "increment":
		return a.store.Set(step.Target, toFloat(cur)+1)
	case "decrement":
		return a.store.Set(step.Target, toFloat(cur)-1)
	case "toggle":
		b, _ := cur.(bool)
		return a.store.Set(step.Target, !b)
	case "append":
		item := any(nil)
		if step.Value != nil {
			v, err := eval.Evaluate(step.Value, a.evalContext(locals))
			if err != nil {
				return err
			}
			item = v
		} else if v, found := locals.Lookup("payload"); found {
			item = v
		}
		list, _ := cur.([]any)
		return a.store.Set(step.Target, append(append([]any(nil), list...), item))
	case "clear":
		return a.store.Set(step.Target, nil)
	default:
		return fmt.Errorf("unknown update operation %q", step.Operation)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// cleanups is the resource arena threaded through rendering. Every
// subscription, listener and observer registers its teardown here; run
// executes each exactly once.
type cleanups struct {
	fns []func()
}

func (c *cleanups) add(fn func()) {
	c.fns = append(c.fns, fn)
}

func (c *cleanups) run() {
	fns := c.fns
	c.fns = nil
	for _, fn := range fns {
		fn()
	}
}
