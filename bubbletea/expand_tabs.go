package bubbletea

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tabWidth is the distance between tab stops.
const tabWidth = 8

// ExpandTabs replaces tabs with spaces up to the next tab stop, counting
// display columns from startCol. Side-by-side columns need this because
// terminals expand tabs relative to the screen edge, not the column.
func ExpandTabs(s string, startCol int) string {
	if !strings.ContainsRune(s, '\t') {
		return s
	}

	var sb strings.Builder
	col := startCol
	for _, r := range s {
		if r != '\t' {
			sb.WriteRune(r)
			col += lipgloss.Width(string(r))
			continue
		}
		n := tabWidth - col%tabWidth
		sb.WriteString(strings.Repeat(" ", n))
		col += n
	}
	return sb.String()
}
