// Package snapshot mirrors a PTY's terminal grid headlessly and serializes
// it to an attribute-run grid a browser client can paint without running
// its own terminal emulator (spec.md §4.6). The VTerm wrapper is grounded
// on internal/egg/vterm.go's vt.Emulator usage (Write/Resize/Render/
// CursorPosition/Close, ScrollOut/AltScreen/CursorVisibility callbacks);
// the attribute-run serializer has no pack precedent (both pack usages of
// charmbracelet/x/vt stop at Render()'s flat ANSI string, never exposing
// cell-level attributes) so it is built as a small ANSI-to-grid decoder
// over that same Render() output, in the spirit of internal/oscparse's
// streaming escape-sequence state machine.
package snapshot

import "fmt"

// ansi16 is the classic xterm default 16-color palette (spec.md §4.6:
// "a fixed 16-color ANSI palette").
var ansi16 = [16]string{
	"#000000", "#800000", "#008000", "#808000",
	"#000080", "#800080", "#008080", "#c0c0c0",
	"#808080", "#ff0000", "#00ff00", "#ffff00",
	"#0000ff", "#ff00ff", "#00ffff", "#ffffff",
}

// cubeStep is the xterm 6x6x6 color cube's per-axis step values (spec.md
// §4.6).
var cubeStep = [6]int{0x00, 0x5f, 0x87, 0xaf, 0xd7, 0xff}

// resolveIndexed maps an xterm-256 color index to its hex string per
// spec.md §4.6: 0-15 the base palette, 16-231 the 6x6x6 cube, 232-255 a
// 24-step greyscale ramp (idx -> idx*10+8).
func resolveIndexed(idx int) string {
	switch {
	case idx < 0:
		return ""
	case idx < 16:
		return ansi16[idx]
	case idx < 232:
		n := idx - 16
		r := cubeStep[n/36]
		g := cubeStep[(n/6)%6]
		b := cubeStep[n%6]
		return hexRGB(r, g, b)
	case idx < 256:
		v := (idx-232)*10 + 8
		return hexRGB(v, v, v)
	default:
		return ""
	}
}

func resolveTrueColor(r, g, b int) string {
	return hexRGB(r, g, b)
}

func hexRGB(r, g, b int) string {
	return fmt.Sprintf("#%02x%02x%02x", clampByte(r), clampByte(g), clampByte(b))
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
