// Package status prints the workflow's user-facing status lines.
package status

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Level is the severity of a status line
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Marker returns the bracketed tag printed in front of a line
func (l Level) Marker() string {
	switch l {
	case LevelSuccess:
		return "[SUCCESS]"
	case LevelWarning:
		return "[WARNING]"
	case LevelError:
		return "[ERROR]"
	default:
		return "[INFO]"
	}
}

// Reporter writes status lines to a single writer. Errors go to the same
// writer as everything else so the transcript stays in order.
type Reporter struct {
	w      io.Writer
	styles map[Level]lipgloss.Style
	title  lipgloss.Style
	key    lipgloss.Style
}

// New creates a Reporter. Colors are only emitted when w is a terminal.
func New(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w: w,
		styles: map[Level]lipgloss.Style{
			LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("39")),
			LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("42")),
			LevelWarning: r.NewStyle().Foreground(lipgloss.Color("214")),
			LevelError:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		key:   r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Print writes one line at the given level
func (r *Reporter) Print(level Level, format string, args ...any) {
	marker := r.styles[level].Render(level.Marker())
	fmt.Fprintf(r.w, "%s %s\n", marker, fmt.Sprintf(format, args...))
}

func (r *Reporter) Info(format string, args ...any) {
	r.Print(LevelInfo, format, args...)
}

func (r *Reporter) Success(format string, args ...any) {
	r.Print(LevelSuccess, format, args...)
}

func (r *Reporter) Warning(format string, args ...any) {
	r.Print(LevelWarning, format, args...)
}

func (r *Reporter) Error(format string, args ...any) {
	r.Print(LevelError, format, args...)
}

// Field is one key/value row of a header block
type Field struct {
	Key   string
	Value string
}

// Header prints a title followed by aligned key/value rows
func (r *Reporter) Header(title string, fields ...Field) {
	width := 0
	for _, f := range fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}

	fmt.Fprintln(r.w, r.title.Render(title))
	for _, f := range fields {
		key := f.Key + ":" + strings.Repeat(" ", width-len(f.Key))
		fmt.Fprintf(r.w, "  %s %s\n", r.key.Render(key), f.Value)
	}
	fmt.Fprintln(r.w)
}

// Raw writes text through unchanged, used for usage output
func (r *Reporter) Raw(s string) {
	fmt.Fprint(r.w, s)
}
