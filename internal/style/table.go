package style

import (
	"regexp"
	"strings"
)

// Alignment controls horizontal placement of a cell within its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Alignment
}

// Table renders fixed-width columnar output for CLI listings.
// Widths are enforced against the plain (ANSI-stripped) cell text so
// styled cells line up with unstyled ones.
type Table struct {
	columns   []Column
	rows      [][]string
	headerSep bool
	indent    string
}

// NewTable creates a table with the given columns.
// Defaults: two-space indent, header separator on.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:   columns,
		headerSep: true,
		indent:    "  ",
	}
}

// SetIndent sets the prefix prepended to every rendered line.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the separator line under the header.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row. Rows shorter than the column count are padded
// with empty cells; extra cells are dropped.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.rows = append(t.rows, row)
	return t
}

// Render produces the full table as a string, one trailing newline per line.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder

	// Header
	b.WriteString(t.indent)
	for i, col := range t.columns {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(t.pad(Bold.Render(col.Name), col.Name, col.Width, col.Align))
	}
	b.WriteString("\n")

	if t.headerSep {
		b.WriteString(t.indent)
		for i, col := range t.columns {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(Dim.Render(strings.Repeat("─", col.Width)))
		}
		b.WriteString("\n")
	}

	for _, row := range t.rows {
		b.WriteString(t.indent)
		for i, col := range t.columns {
			if i > 0 {
				b.WriteString("  ")
			}
			cell := row[i]
			plain := stripAnsi(cell)
			if len(plain) > col.Width {
				cell = truncate(plain, col.Width)
				plain = cell
			}
			b.WriteString(t.pad(cell, plain, col.Width, col.Align))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// pad aligns styled text within width based on its plain-text length.
// When the plain text already fills the width, the styled text is
// returned unchanged.
func (t *Table) pad(styled, plain string, width int, align Alignment) string {
	gap := width - len(plain)
	if gap <= 0 {
		return styled
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		right := gap - left
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", right)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

// truncate shortens plain text to width, reserving room for an ellipsis.
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsi removes ANSI escape sequences so width math sees visible
// characters only.
func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
