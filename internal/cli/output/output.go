// Package output renders command results as styled text, markdown, or JSON.
//
// The renderer picks the output mode once, from the --output flag or by
// detecting whether stdout is a terminal, and commands ask it to print
// lines, tables, and JSON without caring which mode is active.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Mode selects how command results are rendered.
type Mode string

const (
	// ModeAuto picks text on a terminal and markdown when piped.
	ModeAuto Mode = "auto"
	// ModeText renders styled terminal output.
	ModeText Mode = "text"
	// ModeMarkdown renders plain markdown suitable for piping into docs.
	ModeMarkdown Mode = "markdown"
	// ModeJSON renders machine-readable JSON.
	ModeJSON Mode = "json"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Tests use this to force either branch of the auto detection.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	switch mode {
	case ModeText, ModeMarkdown, ModeJSON:
	default:
		// ModeAuto, empty, and unrecognized values all auto-detect.
		if isTTY {
			mode = ModeText
		} else {
			mode = ModeMarkdown
		}
	}

	// NO_COLOR and CLICOLOR are respected via termenv.
	color := mode == ModeText && isTTY && !termenv.EnvNoColor()

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(color),
	}
}

// Mode returns the resolved output mode (never ModeAuto).
func (r *Renderer) Mode() Mode {
	return r.mode
}

// IsJSON reports whether the renderer emits JSON.
func (r *Renderer) IsJSON() bool {
	return r.mode == ModeJSON
}

// Styles returns the lipgloss styles for the active mode. In non-text
// modes every style is a zero style, which renders its input unchanged.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// Println writes a line to stdout.
func (r *Renderer) Println(a ...interface{}) {
	fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to stdout.
func (r *Renderer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(r.out, format, a...)
}

// Errorf writes formatted output to stderr.
func (r *Renderer) Errorf(format string, a ...interface{}) {
	fmt.Fprintf(r.errOut, format, a...)
}

// JSON writes v to stdout as indented JSON.
func (r *Renderer) JSON(v interface{}) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewTable returns a table writer mirrored to stdout and styled for the
// active mode. Emit it with RenderTable.
func (r *Renderer) NewTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderTable emits a prepared table as text or markdown.
func (r *Renderer) RenderTable(t table.Writer) {
	if r.mode == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}
