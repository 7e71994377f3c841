// Package ssr renders compiled programs to static HTML on the server.
// It drives the same renderer the browser runtime uses, so the markup
// it emits is exactly what hydration expects to adopt.
package ssr

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuuichieguchi/constela/internal/dom"
	"github.com/yuuichieguchi/constela/pkg/program"
	"github.com/yuuichieguchi/constela/pkg/runtime"
)

// Options carries the per-request context a render sees: the concrete
// route being rendered and any resolved data. All fields are optional.
type Options struct {
	Route   *program.RouteContext
	Data    map[string]any
	Cookies map[string]string
}

// Render produces the HTML for a compiled program's view with state at
// its initial values.
func Render(prog *program.CompiledProgram, opts Options) (string, error) {
	doc := dom.NewDocument()
	var evalErr error
	app, err := runtime.Mount(doc, doc.Root(), prog, runtime.Options{
		Route:   opts.Route,
		Data:    opts.Data,
		Cookies: opts.Cookies,
		OnError: func(err error) {
			if evalErr == nil {
				evalErr = err
			}
		},
	})
	if err != nil {
		return "", fmt.Errorf("render view: %w", err)
	}
	defer app.Destroy()
	if evalErr != nil {
		return "", fmt.Errorf("render view: %w", evalErr)
	}

	return doc.Root().InnerHTML(), nil
}

// Page wraps rendered body HTML in a full document shell.
type Page struct {
	// Title becomes the document title; empty falls back to the route
	// meta title, then to the site name.
	Title string
	// Lang is the html element's lang attribute; empty means "en".
	Lang string
	// Stylesheets and Scripts are href/src lists emitted in order.
	// Scripts load as type="module".
	Stylesheets []string
	Scripts     []string
	// Meta holds extra name/content meta tags in map iteration order
	// independent form; see RenderPage.
	Meta map[string]string
}

// RenderPage renders a compiled program and wraps it in an HTML
// document. The route's meta title, when present, is used unless the
// page overrides it.
func RenderPage(prog *program.CompiledProgram, opts Options, page Page) (string, error) {
	body, err := Render(prog, opts)
	if err != nil {
		return "", err
	}

	title := page.Title
	if title == "" && prog.Route != nil {
		if t, ok := prog.Route.Meta["title"].(string); ok {
			title = t
		}
	}
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html lang=%q>\n<head>\n", lang)
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	}
	for _, name := range sortedMetaNames(page.Meta) {
		fmt.Fprintf(&b, "<meta name=%q content=%q>\n", name, page.Meta[name])
	}
	for _, href := range page.Stylesheets {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=%q>\n", href)
	}
	b.WriteString("</head>\n<body>\n<div id=\"app\">")
	b.WriteString(body)
	b.WriteString("</div>\n")
	for _, src := range page.Scripts {
		fmt.Fprintf(&b, "<script type=\"module\" src=%q></script>\n", src)
	}
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func sortedMetaNames(meta map[string]string) []string {
	names := make([]string, 0, len(meta))
	for name := range meta {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
