package runtime

import (
	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/eval"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// bindEvent wires one event prop onto an element. DOM events go
// through AddEventListener; the synthetic "intersect" event gets a
// per-element IntersectionObserver.
func (r *renderer) bindEvent(el *dom.Element, p program.EventProp, locals *eval.Scope, cl *cleanups) {
	if p.Event == "intersect" {
		r.bindIntersect(el, p, locals, cl)
		return
	}

	once := p.Options != nil && p.Options.Once
	prevent := p.Options != nil && p.Options.PreventDefault
	fired := false
	var remove func()
	remove = el.AddEventListener(p.Event, func(ev *dom.Event) {
		if once && fired {
			return
		}
		fired = true
		if prevent {
			ev.PreventDefault()
		}
		r.dispatch(p.Action, p.Payload, locals.Child(eventLocals(ev.Target)))
		if once {
			remove()
		}
	})
	cl.add(remove)
}

func (r *renderer) bindIntersect(el *dom.Element, p program.EventProp, locals *eval.Scope, cl *cleanups) {
	threshold := 0.0
	rootMargin := ""
	once := false
	if p.Options != nil {
		threshold = p.Options.Threshold
		rootMargin = p.Options.RootMargin
		once = p.Options.Once
	}
	var obs *dom.IntersectionObserver
	obs = r.app.doc.NewIntersectionObserver(func(entries []dom.IntersectionEntry) {
		for _, entry := range entries {
			if !entry.IsIntersecting {
				continue
			}
			r.dispatch(p.Action, p.Payload, locals.Child(intersectLocals(entry)))
			if once {
				obs.Unobserve(entry.Target)
			}
		}
	}, threshold, rootMargin)
	obs.Observe(el)
	cl.add(obs.Disconnect)
}

// dispatch is the single path from an event occurrence to an action
// run: payload evaluation and the action both see the app's full
// evaluation context, so route, data and cookies reach every handler.
func (r *renderer) dispatch(action string, pl *program.Payload, locals *eval.Scope) {
	payload, err := eval.EvaluatePayload(pl, r.app.evalContext(locals))
	if err != nil {
		r.app.reportError(err)
		return
	}
	if err := r.app.Dispatch(action, payload); err != nil {
		r.app.reportError(err)
	}
}

// eventLocals exposes the event target to payload expressions: the
// live input "value" always, plus "files" for file inputs, one object
// per selected file.
func eventLocals(target *dom.Element) map[string]any {
	vars := map[string]any{"value": ""}
	if target == nil {
		return vars
	}
	vars["value"] = target.Value
	if target.IsFileInput() {
		files := make([]any, 0, len(target.Files()))
		for _, f := range target.Files() {
			files = append(files, map[string]any{
				"name":  f.Name,
				"size":  float64(f.Size),
				"type":  f.Type,
				"_file": f,
			})
		}
		vars["files"] = files
	}
	return vars
}

func intersectLocals(entry dom.IntersectionEntry) map[string]any {
	return map[string]any{
		"isIntersecting":    entry.IsIntersecting,
		"intersectionRatio": entry.IntersectionRatio,
	}
}
