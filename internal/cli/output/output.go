// Package output provides rendering helpers for CLI commands. The
// renderer picks between styled terminal output and machine-readable
// JSON based on an explicit mode or terminal detection.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto Mode = "auto"
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Path    lipgloss.Style
}

func colorStyles() *Styles {
	return &Styles{
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true),
	}
}

func plainStyles() *Styles {
	s := lipgloss.NewStyle()
	return &Styles{Error: s, Warning: s, Success: s, Bold: s, Muted: s, Path: s}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. ModeAuto styles the output when
// stdout is a terminal and falls back to plain text when piped.
func NewRenderer(stdout, stderr io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	r := &Renderer{stdout: stdout, stderr: stderr, mode: mode}
	if r.isTerminal() && mode != ModeJSON {
		r.styles = colorStyles()
	} else {
		r.styles = plainStyles()
	}
	return r
}

func (r *Renderer) isTerminal() bool {
	f, ok := r.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto to a concrete mode.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeAuto {
		return ModeText
	}
	return r.mode
}

// Writer returns the underlying stdout writer.
func (r *Renderer) Writer() io.Writer {
	return r.stdout
}

// Styles returns the active style set.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Printf writes formatted text to stdout.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.stdout, format, args...)
}

// Println writes a line to stdout.
func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.stdout, args...)
}

// Success writes a styled success line.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Errorf writes a styled error line to stderr.
func (r *Renderer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(r.stderr, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// JSON writes v as indented JSON to stdout.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
