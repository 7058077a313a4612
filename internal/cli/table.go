package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const tablePadding = 2

// writeTable aligns rows under headers. Widths ignore ANSI styling, so
// lipgloss-rendered cells line up with plain ones.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	cols := len(headers)
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return nil
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], cellWidth(cell))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	w := bufio.NewWriter(out)
	line := func(row []string) {
		var b strings.Builder
		for i := range cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(cell)
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-cellWidth(cell)+tablePadding))
			}
		}
		b.WriteByte('\n')
		_, _ = w.WriteString(b.String())
	}
	if len(headers) > 0 {
		line(headers)
	}
	for _, row := range rows {
		line(row)
	}
	return w.Flush()
}

func cellWidth(cell string) int {
	return runewidth.StringWidth(stripANSI(cell))
}

// stripANSI removes CSI escape sequences.
func stripANSI(value string) string {
	if !strings.Contains(value, "\x1b[") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != 0x1b || i+1 >= len(value) || value[i+1] != '[' {
			b.WriteByte(value[i])
			continue
		}
		i += 2
		for i < len(value) && (value[i] < 0x40 || value[i] > 0x7e) {
			i++
		}
	}
	return b.String()
}
