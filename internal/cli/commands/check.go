package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/yuuichieguchi/constela/internal/cli/output"
	"github.com/yuuichieguchi/constela/internal/loader"
	"github.com/yuuichieguchi/constela/pkg/analyzer"
	"github.com/yuuichieguchi/constela/pkg/diag"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Path   string // File or directory path
	Format string // Output format: text, json
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Analyze pages and layouts without building",
		Long: `Run static analysis over every page and layout and report the
diagnostics found. All errors in a file are collected; analysis never
stops at the first one.

Output adapts to environment:
  - Terminal: Styled table with colors
  - JSON: Machine-readable format`,
		Example: `  # Check the whole project
  constela check

  # Check a single page
  constela check pages/index.json

  # Output as JSON
  constela check --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Path = args[0]
			}
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// fileDiagnostics holds analysis results for a single file.
type fileDiagnostics struct {
	File  string        `json:"file"`
	Diags []*diag.Error `json:"diagnostics"`
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	p := GetProject(cmd)
	r := GetRenderer(cmd)
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	pages, layouts, err := collectSources(p, opts.Path)
	if err != nil {
		return err
	}
	if len(pages)+len(layouts) == 0 {
		return fmt.Errorf("no source files found under %s", p.Root)
	}

	var results []fileDiagnostics
	checked := 0
	for _, path := range pages {
		checked++
		if diags := checkPage(path); len(diags) > 0 {
			results = append(results, fileDiagnostics{File: relTo(p.Root, path), Diags: diags})
		}
	}
	for _, path := range layouts {
		checked++
		if diags := checkLayout(path); len(diags) > 0 {
			results = append(results, fileDiagnostics{File: relTo(p.Root, path), Diags: diags})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	if r.EffectiveMode() == output.ModeJSON {
		if results == nil {
			results = []fileDiagnostics{}
		}
		if err := r.JSON(results); err != nil {
			return err
		}
		if len(results) > 0 {
			return fmt.Errorf("analysis errors found")
		}
		return nil
	}

	if len(results) == 0 {
		r.Success(fmt.Sprintf("No issues in %d files", checked))
		return nil
	}
	renderDiagnostics(r, results)
	total := 0
	for _, res := range results {
		total += len(res.Diags)
	}
	r.Printf("Summary: %d issues in %d of %d files\n", total, len(results), checked)
	return fmt.Errorf("analysis errors found")
}

func checkPage(path string) []*diag.Error {
	prog, err := loader.LoadProgram(path)
	if err != nil {
		return []*diag.Error{diag.New(diag.SchemaInvalid, "", "%v", err)}
	}
	_, diags := analyzer.Analyze(prog)
	return diags
}

func checkLayout(path string) []*diag.Error {
	lp, err := loader.LoadLayout(path)
	if err != nil {
		return []*diag.Error{diag.New(diag.SchemaInvalid, "", "%v", err)}
	}
	_, diags := analyzer.AnalyzeLayout(lp)
	return diags
}

// collectSources returns page and layout files to analyze. pathFilter,
// when set, restricts analysis to that file or directory.
func collectSources(p *Project, pathFilter string) (pages, layouts []string, err error) {
	pagesDir := resolveDir(p.Root, p.Cfg.PagesDir)
	layoutsDir := resolveDir(p.Root, p.Cfg.LayoutsDir)

	if pathFilter != "" {
		target := pathFilter
		if !filepath.IsAbs(target) {
			target = filepath.Join(p.Root, target)
		}
		info, err := os.Stat(target)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			if isUnder(target, layoutsDir) {
				return nil, []string{target}, nil
			}
			return []string{target}, nil, nil
		}
		pagesDir = target
		layoutsDir = ""
	}

	pages, err = globJSON(pagesDir)
	if err != nil {
		return nil, nil, err
	}
	if layoutsDir != "" {
		layouts, err = globJSON(layoutsDir)
		if err != nil {
			return nil, nil, err
		}
	}
	return pages, layouts, nil
}

func globJSON(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".json" {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func resolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

// renderDiagnostics prints one table per file, a row per diagnostic.
func renderDiagnostics(r *output.Renderer, results []fileDiagnostics) {
	styles := r.Styles()
	for _, res := range results {
		r.Println(styles.Path.Render(res.File))

		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Severity", "Code", "Path", "Message"})
		for _, d := range res.Diags {
			msg := d.Message
			if d.Suggestion != "" {
				msg += " " + styles.Muted.Render("(did you mean "+d.Suggestion+"?)")
			}
			t.AppendRow(table.Row{severityCell(styles, d.Severity), string(d.Code), d.Path, msg})
		}
		t.Render()
		r.Println("")
	}
}

func severityCell(styles *output.Styles, sev diag.Severity) string {
	switch sev {
	case diag.SeverityError:
		return styles.Error.Render("error")
	case diag.SeverityWarning:
		return styles.Warning.Render("warning")
	default:
		return string(sev)
	}
}
