package snapshot

import "strconv"

// Run is one contiguous span of cells sharing the same attributes
// (spec.md §4.6). Fg/Bg are empty when a cell uses the client's default
// color rather than an explicitly set one.
type Run struct {
	Text      string `json:"text"`
	Fg        string `json:"fg,omitempty"`
	Bg        string `json:"bg,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

// Frame is one serialized snapshot of a mirror's visible grid (spec.md
// §4.6: "Snapshots also carry cursor x/y and current cols/rows").
type Frame struct {
	Rows     [][]Run `json:"rows"`
	CursorX  int     `json:"cursorX"`
	CursorY  int     `json:"cursorY"`
	Cols     int     `json:"cols"`
	RowCount int     `json:"rowCount"`
}

type cellStyle struct {
	fg, bg                   string
	bold, italic, underline  bool
	reverse                  bool
}

type cell struct {
	ch    rune
	style cellStyle
}

// render collapses a resolved grid into the wire Frame, applying
// inverse-video fg/bg swap at emission (spec.md §4.6).
func render(grid [][]cell, cols, rows, cursorX, cursorY int) Frame {
	f := Frame{Cols: cols, RowCount: rows, CursorX: cursorX, CursorY: cursorY}
	f.Rows = make([][]Run, len(grid))
	for y, row := range grid {
		f.Rows[y] = collapseRow(row)
	}
	return f
}

func collapseRow(row []cell) []Run {
	var runs []Run
	var cur *Run
	var curStyle cellStyle
	flush := func() {
		if cur != nil {
			runs = append(runs, *cur)
			cur = nil
		}
	}
	for _, c := range row {
		st := c.style
		fg, bg := st.fg, st.bg
		if st.reverse {
			fg, bg = bg, fg
			if fg == "" {
				fg = ansi16[0]
			}
			if bg == "" {
				bg = ansi16[7]
			}
		}
		ch := c.ch
		if ch == 0 {
			ch = ' '
		}
		if cur == nil || fg != curStyle.fg || bg != curStyle.bg ||
			st.bold != curStyle.bold || st.italic != curStyle.italic || st.underline != curStyle.underline {
			flush()
			cur = &Run{Fg: fg, Bg: bg, Bold: st.bold, Italic: st.italic, Underline: st.underline}
			curStyle = st
		}
		cur.Text += string(ch)
	}
	flush()
	return runs
}

// parseGrid interprets ansiText as a stream written onto a blank cols x
// rows grid, tracking cursor position and SGR state. It handles the
// cursor-movement, erase, and SGR sequences a full-repaint Render() call
// plausibly emits; it is not a complete terminal emulator (no scroll
// regions, no charset shifts) since it only ever consumes output this
// package's own Mirror produced via the real vt.Emulator.
func parseGrid(ansiText string, cols, rows int) ([][]cell, int, int) {
	grid := make([][]cell, rows)
	for y := range grid {
		grid[y] = make([]cell, cols)
		for x := range grid[y] {
			grid[y][x] = cell{ch: ' '}
		}
	}
	x, y := 0, 0
	var st cellStyle

	putRune := func(r rune) {
		if y >= 0 && y < rows && x >= 0 && x < cols {
			grid[y][x] = cell{ch: r, style: st}
		}
		x++
		if x >= cols {
			x = 0
			y++
		}
	}
	newline := func() {
		x = 0
		y++
	}
	clampCursor := func() {
		if y >= rows {
			y = rows - 1
		}
		if y < 0 {
			y = 0
		}
		if x >= cols {
			x = cols - 1
		}
		if x < 0 {
			x = 0
		}
	}

	runes := []rune(ansiText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\r':
			x = 0
			continue
		case '\n':
			newline()
			continue
		case '\b':
			if x > 0 {
				x--
			}
			continue
		case '\t':
			x = ((x / 8) + 1) * 8
			continue
		case 0x1b:
			if i+1 < len(runes) && runes[i+1] == '[' {
				seq, n := scanCSI(runes[i+2:])
				i += 1 + n
				applyCSI(seq, &x, &y, &st, cols, rows, grid)
				clampCursor()
				continue
			}
			// Other escapes (e.g. RIS "\x1bc") are not expected from our own
			// Render() output; skip the introducer and keep scanning.
			continue
		}
		putRune(r)
	}
	clampCursor()
	return grid, x, y
}

// scanCSI consumes a CSI sequence's parameter/intermediate bytes and
// final byte, starting just after "ESC [". It returns the raw sequence
// (including the final byte) and the number of runes consumed.
func scanCSI(rest []rune) (string, int) {
	for i, r := range rest {
		if r >= 0x40 && r <= 0x7e {
			return string(rest[:i+1]), i + 1
		}
	}
	return string(rest), len(rest)
}

func applyCSI(seq string, x, y *int, st *cellStyle, cols, rows int, grid [][]cell) {
	if len(seq) == 0 {
		return
	}
	final := seq[len(seq)-1]
	params := parseParams(seq[:len(seq)-1])
	p := func(i, def int) int {
		if i < len(params) && params[i] != 0 {
			return params[i]
		}
		if i < len(params) {
			return params[i]
		}
		return def
	}
	switch final {
	case 'H', 'f':
		*y = p(0, 1) - 1
		*x = p(1, 1) - 1
	case 'A':
		*y -= p(0, 1)
	case 'B':
		*y += p(0, 1)
	case 'C':
		*x += p(0, 1)
	case 'D':
		*x -= p(0, 1)
	case 'G':
		*x = p(0, 1) - 1
	case 'd':
		*y = p(0, 1) - 1
	case 'J':
		eraseDisplay(grid, *x, *y, p(0, 0), cols, rows)
	case 'K':
		eraseLine(grid, *x, *y, p(0, 0), cols)
	case 'm':
		applySGR(params, st)
	}
}

func parseParams(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ';' {
			v, _ := strconv.Atoi(s[start:i])
			out = append(out, v)
			start = i + 1
		}
	}
	return out
}

func eraseLine(grid [][]cell, x, y, mode, cols int) {
	if y < 0 || y >= len(grid) {
		return
	}
	row := grid[y]
	lo, hi := 0, cols
	switch mode {
	case 0:
		lo = x
	case 1:
		hi = x + 1
	}
	for i := lo; i < hi && i < cols; i++ {
		row[i] = cell{ch: ' '}
	}
}

func eraseDisplay(grid [][]cell, x, y, mode, cols, rows int) {
	clearRow := func(r int) {
		if r < 0 || r >= len(grid) {
			return
		}
		for i := range grid[r] {
			grid[r][i] = cell{ch: ' '}
		}
	}
	switch mode {
	case 0:
		eraseLine(grid, x, y, 0, cols)
		for r := y + 1; r < rows; r++ {
			clearRow(r)
		}
	case 1:
		eraseLine(grid, x, y, 1, cols)
		for r := 0; r < y; r++ {
			clearRow(r)
		}
	case 2, 3:
		for r := 0; r < rows; r++ {
			clearRow(r)
		}
	}
}

func applySGR(params []int, st *cellStyle) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			*st = cellStyle{}
		case code == 1:
			st.bold = true
		case code == 22:
			st.bold = false
		case code == 3:
			st.italic = true
		case code == 23:
			st.italic = false
		case code == 4:
			st.underline = true
		case code == 24:
			st.underline = false
		case code == 7:
			st.reverse = true
		case code == 27:
			st.reverse = false
		case code == 39:
			st.fg = ""
		case code == 49:
			st.bg = ""
		case code >= 30 && code <= 37:
			st.fg = ansi16[code-30]
		case code >= 40 && code <= 47:
			st.bg = ansi16[code-40]
		case code >= 90 && code <= 97:
			st.fg = ansi16[code-90+8]
		case code >= 100 && code <= 107:
			st.bg = ansi16[code-100+8]
		case code == 38 || code == 48:
			consumed, color := parseExtendedColor(params[i+1:])
			if code == 38 {
				st.fg = color
			} else {
				st.bg = color
			}
			i += consumed
		}
	}
}

// parseExtendedColor handles "38;5;n" (indexed) and "38;2;r;g;b"
// (truecolor) sub-sequences starting just after the 38/48 code.
func parseExtendedColor(rest []int) (consumed int, hex string) {
	if len(rest) == 0 {
		return 0, ""
	}
	switch rest[0] {
	case 5:
		if len(rest) >= 2 {
			return 2, resolveIndexed(rest[1])
		}
		return 1, ""
	case 2:
		if len(rest) >= 4 {
			return 4, resolveTrueColor(rest[1], rest[2], rest[3])
		}
		return 1, ""
	default:
		return 0, ""
	}
}
