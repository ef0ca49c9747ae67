package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	tf := NewTableFormatter(nil)

	out := tf.FormatTable(
		[]string{"Archive", "Size"},
		[][]string{
			{"database_backup_01_01_2026__06_00_00.tar.gz", "1.2 GiB"},
			{"short.tar.gz", "3 B"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)

	// Every column starts at the same offset in every row.
	sizeCol := strings.Index(lines[0], "Size")
	assert.True(t, sizeCol > 0)
	assert.Equal(t, "1.2 GiB", strings.TrimSpace(lines[2][sizeCol:]))
	assert.Equal(t, "3 B", strings.TrimSpace(lines[3][sizeCol:]))
}

func TestFormatTableShortRowsPadded(t *testing.T) {
	tf := NewTableFormatter(nil)

	out := tf.FormatTable([]string{"A", "B", "C"}, [][]string{{"x"}})
	assert.Contains(t, out, "x")
}

func TestFormatTableEmptyHeaders(t *testing.T) {
	tf := NewTableFormatter(nil)
	assert.Empty(t, tf.FormatTable(nil, nil))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}
