// Package ui renders the end-of-run summary for the terminal.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/abdala/minicon/pkg/engine"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"})
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "241", Dark: "246"}).Width(18)
	valueStyle = lipgloss.NewStyle().Bold(true)
)

// IsTerminal reports whether f is attached to a terminal; the summary is
// suppressed when the archive streams to stdout and plain when piped.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderSummary formats the run report. With styled set, the output uses
// the terminal styles; otherwise it stays plain text.
func RenderSummary(r *engine.Report, styled bool) string {
	rows := [][2]string{
		{"Output root", r.OutputRoot},
		{"Commands", fmt.Sprintf("%d analyzed", r.Commands)},
		{"Files", fmt.Sprintf("%d copied, %d skipped, %d excluded", r.CopyStats.Copied, r.CopyStats.Skipped, r.CopyStats.Excluded)},
		{"Loader dirs", fmt.Sprintf("%d", r.LoaderDirs)},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
	}
	if r.TarFile != "" {
		rows = append(rows, [2]string{"Archive", r.TarFile})
	}

	var b strings.Builder
	if styled {
		b.WriteString(titleStyle.Render("minicon run complete"))
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString(labelStyle.Render(row[0]))
			b.WriteString(valueStyle.Render(row[1]))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString("minicon run complete\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%-18s%s\n", row[0], row[1])
	}
	return b.String()
}
