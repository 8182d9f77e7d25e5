// Package ui renders the end-of-run summary printed by the textstore CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/stackvity/textstore/internal/cli/hooks"
)

// Summary describes one CLI run.
type Summary struct {
	Command  string
	Input    string
	Output   string
	Codepage int
	Steps    []hooks.Step
	Lossy    bool
	Duration time.Duration
	Err      error
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252") // Light Gray
	ColorHeaderBg = lipgloss.Color("62")  // Purple
	ColorDimFg    = lipgloss.Color("244") // Dim gray

	ColorStatusSuccess = lipgloss.Color("40")  // Green
	ColorStatusFailed  = lipgloss.Color("196") // Red
	ColorStatusWarning = lipgloss.Color("214") // Orange/Yellow
)

type styles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, styled bool) styles {
	if !styled {
		plain := r.NewStyle()
		return styles{header: plain, label: plain, dim: plain, success: plain, failed: plain, warning: plain, box: plain}
	}
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(ColorHeaderFg).Background(ColorHeaderBg).Padding(0, 1),
		label:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Foreground(ColorDimFg),
		success: r.NewStyle().Foreground(ColorStatusSuccess),
		failed:  r.NewStyle().Foreground(ColorStatusFailed),
		warning: r.NewStyle().Foreground(ColorStatusWarning),
		box:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes the summary to w, styled when w is a terminal.
func Print(w io.Writer, s Summary) error {
	_, err := fmt.Fprintln(w, Render(lipgloss.NewRenderer(w), s, IsTerminal(w)))
	return err
}

// Render formats the summary. Without styling the output is plain text with
// one fact per line.
func Render(r *lipgloss.Renderer, s Summary, styled bool) string {
	st := newStyles(r, styled)
	var b strings.Builder

	status := st.success.Render("ok")
	if s.Err != nil {
		status = st.failed.Render("failed")
	}
	fmt.Fprintf(&b, "%s %s\n", st.header.Render("textstore "+s.Command), status)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", st.label.Render(label+":"), value)
		}
	}
	field("input", s.Input)
	field("output", s.Output)
	if s.Codepage != 0 {
		field("codepage", fmt.Sprintf("%d", s.Codepage))
	}
	field("time", formatDuration(s.Duration))

	for i, step := range s.Steps {
		fmt.Fprintf(&b, "%s %s\n", st.dim.Render(fmt.Sprintf("%2d.", i+1)), describe(step))
	}
	if s.Lossy {
		b.WriteString(st.warning.Render("warning: some characters could not be represented and were substituted") + "\n")
	}
	if s.Err != nil {
		b.WriteString(st.failed.Render("error: "+s.Err.Error()) + "\n")
	}

	out := strings.TrimRight(b.String(), "\n")
	if styled {
		return st.box.Render(out)
	}
	return out
}

func describe(s hooks.Step) string {
	if s.Kind == hooks.KindCommit {
		verdict := "unchanged"
		if s.Changed {
			verdict = "changed"
		}
		return fmt.Sprintf("commit %s (%s)", s.To, verdict)
	}
	line := fmt.Sprintf("%s -> %s, %d units", s.From, s.To, s.Units)
	if d := formatDuration(s.Duration); d != "" {
		line += ", " + d
	}
	if s.Lossy {
		line += ", lossy"
	}
	return line
}

// formatDuration formats duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		if d == 0 {
			return ""
		}
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
