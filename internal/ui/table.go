package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table lays rows out in aligned columns. The last column is truncated so a
// row fits in width cells.
func Table(styles *Styles, headers []string, rows [][]string, width int) string {
	cols := len(headers)
	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}
	used := 0
	for i := 0; i < cols-1; i++ {
		used += widths[i] + 2
	}
	if cols > 0 && width > used {
		widths[cols-1] = min(widths[cols-1], width-used)
	}

	var b strings.Builder
	writeRow := func(cells []string, render func(string) string) {
		parts := make([]string, cols)
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == cols-1 {
				parts[i] = render(runewidth.Truncate(cell, widths[i], "…"))
				continue
			}
			parts[i] = render(runewidth.FillRight(cell, widths[i]))
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteString("\n")
	}
	writeRow(headers, func(s string) string { return styles.Header.Render(s) })
	for _, row := range rows {
		writeRow(row, func(s string) string { return s })
	}
	return b.String()
}
