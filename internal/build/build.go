// Package build turns a project directory of authored page and layout
// files into a static site: it compiles every page, composes layouts,
// resolves data sources, renders HTML and bundles the client entry.
package build

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuuichieguchi/constela/internal/loader"
	"github.com/yuuichieguchi/constela/internal/ssr"
	"github.com/yuuichieguchi/constela/pkg/compiler"
	"github.com/yuuichieguchi/constela/pkg/diag"
	"github.com/yuuichieguchi/constela/pkg/eval"
	"github.com/yuuichieguchi/constela/pkg/program"
	"golang.org/x/sync/errgroup"
)

// Options configures a Builder. Relative directories are resolved
// against Root.
type Options struct {
	Root       string
	PagesDir   string
	LayoutsDir string
	PublicDir  string
	OutDir     string

	// ClientEntry is an optional JS/TS entry point bundled into
	// OutDir/assets and referenced from every page.
	ClientEntry string
	Minify      bool

	// CachePath locates the SQLite build cache; ":memory:" gives a
	// per-process cache.
	CachePath string
	// Force rebuilds pages even when their content hash is unchanged.
	Force bool

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Root == "" {
		o.Root = "."
	}
	if o.PagesDir == "" {
		o.PagesDir = "pages"
	}
	if o.LayoutsDir == "" {
		o.LayoutsDir = "layouts"
	}
	if o.PublicDir == "" {
		o.PublicDir = "public"
	}
	if o.OutDir == "" {
		o.OutDir = "dist"
	}
	if o.CachePath == "" {
		o.CachePath = ":memory:"
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

func (o *Options) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(o.Root, dir)
}

// Builder runs project builds. One Builder may run many builds; the
// content-hash cache persists across them.
type Builder struct {
	opts   Options
	cache  *Cache
	logger *slog.Logger
}

// PageResult describes the outcome of one source page.
type PageResult struct {
	Source  string
	Outputs []string
	Skipped bool
}

// Result summarizes one build run.
type Result struct {
	ID       string
	Pages    []PageResult
	Duration time.Duration
}

// Outputs counts written files across all pages.
func (r *Result) Outputs() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Outputs)
	}
	return n
}

// DiagnosticsError carries the analysis errors of one source file so
// callers can render them individually.
type DiagnosticsError struct {
	File  string
	Diags []*diag.Error
}

func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("%s: %d analysis errors (first: %s)", e.File, len(e.Diags), e.Diags[0].Error())
}

// New creates a Builder and opens its cache.
func New(opts Options) (*Builder, error) {
	opts.applyDefaults()
	cache, err := OpenCache(opts.CachePath)
	if err != nil {
		return nil, err
	}
	return &Builder{opts: opts, cache: cache, logger: opts.Logger}, nil
}

// Close releases the build cache.
func (b *Builder) Close() error {
	return b.cache.Close()
}

// Build compiles and renders every page, copies the public directory
// and bundles the client entry. Pages build in parallel.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	pages, err := b.scanPages()
	if err != nil {
		return nil, err
	}

	results := make([]PageResult, len(pages))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(goruntime.GOMAXPROCS(0))
	for i, src := range pages {
		i, src := i, src
		eg.Go(func() error {
			res, err := b.buildPage(egctx, src)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := b.copyPublic(); err != nil {
		return nil, err
	}
	if b.opts.ClientEntry != "" {
		if err := bundleClient(b.opts.resolve(b.opts.ClientEntry), b.opts.resolve(b.opts.OutDir), b.opts.Minify); err != nil {
			return nil, err
		}
	}

	result := &Result{
		ID:       uuid.New().String(),
		Pages:    results,
		Duration: time.Since(start),
	}
	b.logger.Info("build finished",
		"id", result.ID,
		"pages", len(result.Pages),
		"outputs", result.Outputs(),
		"duration", result.Duration)
	return result, nil
}

// scanPages lists page source files under the pages directory in
// lexical order.
func (b *Builder) scanPages() ([]string, error) {
	dir := b.opts.resolve(b.opts.PagesDir)
	var pages []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".json" {
			pages = append(pages, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pages: %w", err)
	}
	sort.Strings(pages)
	return pages, nil
}

func (b *Builder) buildPage(ctx context.Context, src string) (PageResult, error) {
	rel, err := filepath.Rel(b.opts.resolve(b.opts.PagesDir), src)
	if err != nil {
		rel = src
	}
	res := PageResult{Source: rel}

	p, err := loader.LoadProgram(src)
	if err != nil {
		return res, err
	}

	layoutPath := ""
	if p.Route != nil && p.Route.Layout != "" {
		layoutPath = filepath.Join(b.opts.resolve(b.opts.LayoutsDir), p.Route.Layout+".json")
	}

	inputs := []string{src}
	if layoutPath != "" {
		inputs = append(inputs, layoutPath)
	}
	hash, err := hashFiles(inputs...)
	if err != nil {
		return res, fmt.Errorf("hash %s: %w", rel, err)
	}
	if !b.opts.Force {
		cached, err := b.cache.Get(rel)
		if err != nil {
			return res, err
		}
		if cached == hash {
			b.logger.Debug("page unchanged, skipping", "source", rel)
			res.Skipped = true
			return res, nil
		}
	}

	compiled, err := b.compilePage(p, rel, layoutPath)
	if err != nil {
		return res, err
	}

	data, err := loader.ResolveData(ctx, b.opts.Root, compiled.Data)
	if err != nil {
		return res, fmt.Errorf("%s: %w", rel, err)
	}

	routes, err := b.expandRoutes(p, rel, data)
	if err != nil {
		return res, err
	}

	page := ssr.Page{}
	if b.opts.ClientEntry != "" {
		page.Scripts = []string{"/assets/" + bundleName(b.opts.ClientEntry)}
	}

	for _, rc := range routes {
		html, err := ssr.RenderPage(compiled, ssr.Options{Route: rc, Data: data}, page)
		if err != nil {
			return res, fmt.Errorf("%s: %w", rel, err)
		}
		out := outputPath(rc.Path)
		if err := b.writeOutput(out, html); err != nil {
			return res, err
		}
		res.Outputs = append(res.Outputs, out)
	}

	if err := b.cache.Set(rel, hash); err != nil {
		return res, err
	}
	b.logger.Info("page built", "source", rel, "outputs", len(res.Outputs))
	return res, nil
}

// compilePage compiles the page program and, when it names a layout,
// composes the layout around it. Import data resolves before
// composition so the page-precedence merge applies.
func (b *Builder) compilePage(p *program.Program, rel, layoutPath string) (*program.CompiledProgram, error) {
	compiled, diags := compiler.Compile(p)
	if len(diags) > 0 {
		return nil, &DiagnosticsError{File: rel, Diags: diags}
	}
	imports, err := loader.ResolveImports(b.opts.Root, p.Imports)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	compiled.ImportData = imports

	if layoutPath == "" {
		return compiled, nil
	}

	lp, err := loader.LoadLayout(layoutPath)
	if err != nil {
		return nil, err
	}
	layout, diags := compiler.TransformLayout(lp)
	if len(diags) > 0 {
		return nil, &DiagnosticsError{File: layoutPath, Diags: diags}
	}
	layoutImports, err := loader.ResolveImports(b.opts.Root, lp.Imports)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layoutPath, err)
	}
	layout.ImportData = layoutImports

	return compiler.ComposeLayoutWithPage(layout, compiled, nil), nil
}

// expandRoutes produces one route context per output page: a single
// context for static routes, one per getStaticPaths entry for
// parameterized routes.
func (b *Builder) expandRoutes(p *program.Program, rel string, data map[string]any) ([]*program.RouteContext, error) {
	routePath := b.routePath(p, rel)
	params := p.Route.ParamNames()
	if len(params) == 0 {
		return []*program.RouteContext{{Path: routePath, Params: map[string]string{}}}, nil
	}

	gsp := p.Route.GetStaticPaths
	if gsp == nil {
		return nil, fmt.Errorf("%s: route %q has params but no getStaticPaths", rel, routePath)
	}
	entries, _ := data[gsp.Source].([]any)

	var routes []*program.RouteContext
	for _, entry := range entries {
		values := map[string]string{}
		locals := eval.NewScope(entryLocals(entry))
		for name, expr := range gsp.Params {
			v, err := eval.Evaluate(expr, &eval.Context{Data: data, Locals: locals})
			if err != nil {
				return nil, fmt.Errorf("%s: getStaticPaths param %q: %w", rel, name, err)
			}
			values[name] = eval.Stringify(v)
		}
		routes = append(routes, &program.RouteContext{
			Path:   fillPath(routePath, values),
			Params: values,
		})
	}
	return routes, nil
}

// entryLocals exposes a getStaticPaths source entry to param
// expressions: the whole entry as "item" plus each field directly.
func entryLocals(entry any) map[string]any {
	locals := map[string]any{"item": entry}
	if fields, ok := entry.(map[string]any); ok {
		for k, v := range fields {
			if k != "item" {
				locals[k] = v
			}
		}
	}
	return locals
}

// routePath derives the route for a page: the declared route path, or
// the page file's location under the pages directory.
func (b *Builder) routePath(p *program.Program, rel string) string {
	if p.Route != nil && p.Route.Path != "" {
		return p.Route.Path
	}
	path := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
	if path == "index" {
		return "/"
	}
	path = strings.TrimSuffix(path, "/index")
	return "/" + path
}

// fillPath substitutes [name] and :name segments with param values.
func fillPath(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, seg := range segs {
		switch {
		case len(seg) > 2 && seg[0] == '[' && seg[len(seg)-1] == ']':
			segs[i] = params[seg[1:len(seg)-1]]
		case len(seg) > 1 && seg[0] == ':':
			segs[i] = params[seg[1:]]
		}
	}
	return strings.Join(segs, "/")
}

// outputPath maps a concrete route to its file under the output
// directory: "/" → index.html, "/about" → about/index.html.
func outputPath(route string) string {
	trimmed := strings.Trim(route, "/")
	if trimmed == "" {
		return "index.html"
	}
	return filepath.Join(filepath.FromSlash(trimmed), "index.html")
}

func (b *Builder) writeOutput(rel, content string) error {
	path := filepath.Join(b.opts.resolve(b.opts.OutDir), rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// copyPublic mirrors the public directory into the output directory.
// A missing public directory is not an error.
func (b *Builder) copyPublic() error {
	src := b.opts.resolve(b.opts.PublicDir)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := b.opts.resolve(b.opts.OutDir)
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// bundleName is the output file name esbuild produces for an entry.
func bundleName(entry string) string {
	base := filepath.Base(entry)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + ".js"
}
