package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMarkdownEmptyReport(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteMarkdown(&b, &Report{}))
	assert.Contains(t, b.String(), "No newly published plugins")
}

func TestWriteMarkdownWithFindings(t *testing.T) {
	report := &Report{Plugins: []*PluginReport{
		{
			ID:      "shady",
			Version: "1.2.3",
			Findings: []Finding{
				{File: "main.js", Line: 4, Rule: "eval-call", Severity: "high", Snippet: `eval(x) | y`},
			},
		},
		{ID: "clean", Version: "0.1.0"},
		{ID: "broken", Version: "2.0.0", Err: "download failed: HTTP 404"},
	}}

	var b strings.Builder
	require.NoError(t, WriteMarkdown(&b, report))
	out := b.String()

	assert.Contains(t, out, "## shady 1.2.3")
	assert.Contains(t, out, "| `main.js` | 4 | eval-call | high |")
	assert.Contains(t, out, `eval(x) \| y`, "pipes must be escaped in table cells")
	assert.Contains(t, out, "No suspicious patterns found.")
	assert.Contains(t, out, "scan incomplete: download failed: HTTP 404")
}

func TestSummary(t *testing.T) {
	assert.Contains(t, Summary(&Report{}), "nothing to scan")

	report := &Report{Plugins: []*PluginReport{
		{ID: "a", Findings: []Finding{{Rule: "eval-call"}}},
		{ID: "b", Err: "boom"},
	}}
	out := Summary(report)
	assert.Contains(t, out, "2 scanned")
	assert.Contains(t, out, "1 finding(s)")
	assert.Contains(t, out, "1 failure(s)")
}
