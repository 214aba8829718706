package style

import (
	"strings"
	"testing"
)

func crewTable() *Table {
	return NewTable(
		Column{Name: "TEAMMATE", Width: 10},
		Column{Name: "BRANCH", Width: 14},
		Column{Name: "STATUS", Width: 8},
	)
}

func plainLines(tbl *Table) []string {
	out := strings.TrimRight(tbl.Render(), "\n")
	lines := strings.Split(out, "\n")
	for i := range lines {
		lines[i] = stripAnsi(lines[i])
	}
	return lines
}

func TestNewTableDefaults(t *testing.T) {
	tbl := crewTable()
	if len(tbl.columns) != 3 {
		t.Errorf("columns = %d, want 3", len(tbl.columns))
	}
	if !tbl.headerSep {
		t.Error("header separator should default on")
	}
	if tbl.indent != "  " {
		t.Errorf("indent = %q, want two spaces", tbl.indent)
	}
}

func TestTableChaining(t *testing.T) {
	tbl := crewTable()
	if tbl.SetIndent("") != tbl || tbl.SetHeaderSeparator(false) != tbl || tbl.AddRow("alice") != tbl {
		t.Error("setters should return the receiver")
	}
	if tbl.indent != "" || tbl.headerSep {
		t.Error("setters did not apply")
	}
}

func TestTableAddRowPadsAndDrops(t *testing.T) {
	tbl := crewTable()
	tbl.AddRow("alice")
	tbl.AddRow("bob", "feat/render", "active", "extra-cell")

	if len(tbl.rows[0]) != 3 {
		t.Fatalf("short row len = %d, want 3", len(tbl.rows[0]))
	}
	if tbl.rows[0][1] != "" || tbl.rows[0][2] != "" {
		t.Errorf("short row should pad with empties: %v", tbl.rows[0])
	}
	if len(tbl.rows[1]) != 3 {
		t.Errorf("long row len = %d, want 3 (extras dropped)", len(tbl.rows[1]))
	}
}

func TestTableRenderEmpty(t *testing.T) {
	if out := NewTable().Render(); out != "" {
		t.Errorf("Render with no columns = %q, want empty", out)
	}
}

func TestTableRenderRows(t *testing.T) {
	tbl := crewTable().SetIndent("").SetHeaderSeparator(false)
	tbl.AddRow("alice", "feat/parser", "active")
	tbl.AddRow("bob", "feat/render", "idle")

	lines := plainLines(tbl)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.Contains(lines[0], "TEAMMATE") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("header missing column names: %q", lines[0])
	}
	if !strings.Contains(lines[1], "alice") || !strings.Contains(lines[1], "feat/parser") {
		t.Errorf("row 1 missing cells: %q", lines[1])
	}
	if !strings.Contains(lines[2], "bob") || !strings.Contains(lines[2], "idle") {
		t.Errorf("row 2 missing cells: %q", lines[2])
	}
}

func TestTableRenderSeparator(t *testing.T) {
	tbl := NewTable(Column{Name: "NS", Width: 6}).SetIndent("")
	tbl.AddRow("proj")

	lines := plainLines(tbl)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + separator + row", len(lines))
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("separator line = %q, want box-drawing dashes", lines[1])
	}
}

func TestTableRenderNoRows(t *testing.T) {
	tbl := NewTable(Column{Name: "TEAMMATE", Width: 10}).SetIndent("")
	lines := plainLines(tbl)
	if len(lines) != 2 {
		t.Errorf("lines = %d, want header + separator only", len(lines))
	}
}

func TestTableRenderIndent(t *testing.T) {
	tbl := NewTable(Column{Name: "A", Width: 4}).SetIndent("    ")
	tbl.AddRow("x")
	for _, line := range strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n") {
		if !strings.HasPrefix(line, "    ") {
			t.Errorf("line missing indent: %q", line)
		}
	}
}

func TestTableRenderTruncates(t *testing.T) {
	tbl := NewTable(Column{Name: "BRANCH", Width: 10}).SetIndent("").SetHeaderSeparator(false)
	tbl.AddRow("feat/very-long-branch-name")

	lines := plainLines(tbl)
	row := strings.TrimSpace(lines[1])
	if !strings.HasSuffix(row, "...") {
		t.Errorf("row = %q, want ellipsis suffix", row)
	}
	if len(row) > 10 {
		t.Errorf("row width = %d, want <= 10", len(row))
	}
}

func TestTablePad(t *testing.T) {
	tbl := &Table{}
	tests := []struct {
		name  string
		text  string
		width int
		align Alignment
		want  string
	}{
		{"left", "ok", 6, AlignLeft, "ok    "},
		{"right", "ok", 6, AlignRight, "    ok"},
		{"center odd gap", "ok", 7, AlignCenter, "  ok   "},
		{"exact width", "exact", 5, AlignLeft, "exact"},
		{"overflow untouched", "overflow", 3, AlignLeft, "overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tbl.pad(tt.text, tt.text, tt.width, tt.align)
			if got != tt.want {
				t.Errorf("pad(%q, %d, %v) = %q, want %q", tt.text, tt.width, tt.align, got, tt.want)
			}
		})
	}
}

func TestTablePadUsesPlainWidth(t *testing.T) {
	tbl := &Table{}
	styled := "\x1b[32mactive\x1b[0m"
	got := tbl.pad(styled, "active", 8, AlignLeft)
	if got != styled+"  " {
		t.Errorf("pad styled = %q, want styled text plus two spaces", got)
	}
}

func TestStripAnsi(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "alice", "alice"},
		{"bold", "\x1b[1malice\x1b[0m", "alice"},
		{"color", "\x1b[31mcrashed\x1b[0m", "crashed"},
		{"stacked", "\x1b[1m\x1b[32mactive\x1b[0m", "active"},
		{"embedded", "a\x1b[33mb\x1b[0mc", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripAnsi(tt.input); got != tt.want {
				t.Errorf("stripAnsi(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
