package display

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TableFormatter renders aligned text tables
type TableFormatter interface {
	FormatTable(headers []string, rows [][]string) string
}

type tableFormatter struct {
	colorSystem ColorSystem
}

// NewTableFormatter creates a table formatter using the given color system
func NewTableFormatter(colorSystem ColorSystem) TableFormatter {
	return &tableFormatter{colorSystem: colorSystem}
}

// FormatTable renders headers and rows with columns padded to their widest
// cell. Rows shorter than the header are padded with empty cells.
func (tf *tableFormatter) FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder

	for i, h := range headers {
		cell := pad(h, widths[i])
		if tf.colorSystem != nil {
			cell = tf.colorSystem.Colorize(cell, tf.colorSystem.GetTheme().Highlight)
		}
		b.WriteString(cell)
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')

	for i, w := range widths {
		b.WriteString(strings.Repeat("-", w))
		if i < len(widths)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')

	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(pad(cell, widths[i]))
			if i < len(headers)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func pad(s string, width int) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// FormatBytes renders a byte count in human-readable form
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
