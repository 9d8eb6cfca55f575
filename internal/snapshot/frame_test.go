package snapshot

import "testing"

func TestParseGridPlainText(t *testing.T) {
	grid, x, y := parseGrid("hello", 10, 2)
	row := collapseRow(grid[0])
	if len(row) != 1 || row[0].Text != "hello     " {
		t.Fatalf("got %+v", row)
	}
	if x != 5 || y != 0 {
		t.Fatalf("cursor = (%d,%d), want (5,0)", x, y)
	}
}

func TestParseGridSGRColor(t *testing.T) {
	grid, _, _ := parseGrid("\x1b[31mred\x1b[m", 10, 1)
	row := collapseRow(grid[0])
	if len(row) != 2 {
		t.Fatalf("got %d runs, want 2 (colored + reset padding), rows=%+v", len(row), row)
	}
	if row[0].Text != "red" || row[0].Fg != "#800000" {
		t.Fatalf("got %+v, want red run with fg #800000", row[0])
	}
	if row[1].Fg != "" {
		t.Fatalf("got %+v, want default fg after reset", row[1])
	}
}

func TestParseGridCursorPositioning(t *testing.T) {
	grid, _, _ := parseGrid("\x1b[2;3Hx", 5, 3)
	row := collapseRow(grid[1])
	// 1-based row 2 col 3 -> 0-based (1,2).
	// Cells of equal style collapse into one run, so look at the row text.
	text := ""
	for _, r := range row {
		text += r.Text
	}
	if len(text) <= 2 || text[2] != 'x' {
		t.Fatalf("expected 'x' at column 2, row %+v", row)
	}
}

func TestParseGridEraseLine(t *testing.T) {
	grid, _, _ := parseGrid("abcdef\x1b[4G\x1b[K", 10, 1)
	row := collapseRow(grid[0])
	if len(row) != 1 || row[0].Text != "abc       " {
		t.Fatalf("got %+v, want erased-to-end-of-line from col 3", row)
	}
}

func TestParseGridReverseSwapsAtEmission(t *testing.T) {
	grid, _, _ := parseGrid("\x1b[7mx\x1b[m", 3, 1)
	row := collapseRow(grid[0])
	if row[0].Fg != ansi16[0] || row[0].Bg != ansi16[7] {
		t.Fatalf("got %+v, want default-reverse fg/bg swap to base black/white", row[0])
	}
}

func TestParseGridBoldItalicUnderline(t *testing.T) {
	grid, _, _ := parseGrid("\x1b[1;3;4my\x1b[m", 3, 1)
	row := collapseRow(grid[0])
	if !row[0].Bold || !row[0].Italic || !row[0].Underline {
		t.Fatalf("got %+v, want bold+italic+underline", row[0])
	}
}
