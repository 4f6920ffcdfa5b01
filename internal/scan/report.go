package scan

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cleanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	findingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// WriteMarkdown renders the CI report consumed by the publish workflow.
func WriteMarkdown(w io.Writer, report *Report) error {
	var b strings.Builder

	b.WriteString("# Plugin archive scan\n\n")
	if len(report.Plugins) == 0 {
		b.WriteString("No newly published plugins to scan.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Scanned %d plugin(s): %d finding(s), %d failure(s).\n\n",
		len(report.Plugins), report.FindingCount(), report.FailureCount())

	for _, p := range report.Plugins {
		fmt.Fprintf(&b, "## %s %s\n\n", p.ID, p.Version)
		switch {
		case p.Err != "":
			fmt.Fprintf(&b, "⚠️ scan incomplete: %s\n\n", p.Err)
		case len(p.Findings) == 0:
			b.WriteString("No suspicious patterns found.\n\n")
		default:
			b.WriteString("| File | Line | Rule | Severity | Snippet |\n")
			b.WriteString("| --- | --- | --- | --- | --- |\n")
			for _, f := range p.Findings {
				fmt.Fprintf(&b, "| `%s` | %d | %s | %s | `%s` |\n",
					f.File, f.Line, f.Rule, f.Severity, escapeCell(f.Snippet))
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// Summary renders a short styled line for terminal output.
func Summary(report *Report) string {
	if len(report.Plugins) == 0 {
		return cleanStyle.Render("nothing to scan")
	}

	parts := []string{fmt.Sprintf("%d scanned", len(report.Plugins))}
	if n := report.FindingCount(); n > 0 {
		parts = append(parts, findingStyle.Render(fmt.Sprintf("%d finding(s)", n)))
	} else {
		parts = append(parts, cleanStyle.Render("no findings"))
	}
	if n := report.FailureCount(); n > 0 {
		parts = append(parts, failureStyle.Render(fmt.Sprintf("%d failure(s)", n)))
	}
	return strings.Join(parts, ", ")
}
