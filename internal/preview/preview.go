// Package preview renders resolved markdown for a terminal.
package preview

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// Renderer renders markdown for one output stream.
type Renderer struct {
	out      io.Writer
	output   *termenv.Output
	renderer *glamour.TermRenderer
}

// New creates a renderer for out. A terminal gets an automatic dark or light
// style wrapped to its width; anything else gets plain ASCII.
func New(out io.Writer) (*Renderer, error) {
	tty := isTerminal(out)
	output := termenv.NewOutput(out)
	width := defaultWidth
	style := glamour.WithStandardStyle("notty")
	profile := termenv.Ascii
	if tty {
		if w, _, err := term.GetSize(int(out.(*os.File).Fd())); err == nil && w > 0 {
			width = w
		}
		style = glamour.WithAutoStyle()
		profile = output.Profile
	}
	tr, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(profile),
	)
	if err != nil {
		return nil, fmt.Errorf("create terminal renderer: %w", err)
	}
	return &Renderer{out: out, output: output, renderer: tr}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Render returns markdown formatted for the terminal.
func (r *Renderer) Render(markdown string) (string, error) {
	return r.renderer.Render(markdown)
}

// Print writes a title line followed by the rendered markdown.
func (r *Renderer) Print(title, markdown string) error {
	rendered, err := r.Render(markdown)
	if err != nil {
		return err
	}
	if title != "" {
		heading := r.output.String(title).Bold().Foreground(r.output.Color("#818cf8"))
		if _, err := fmt.Fprintln(r.out, heading); err != nil {
			return err
		}
	}
	_, err = io.WriteString(r.out, rendered)
	return err
}
