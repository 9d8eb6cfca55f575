package snapshot

import (
	"sync"

	"github.com/charmbracelet/x/vt"
)

// Mirror is a headless terminal mirror for one surface: a PTY's output is
// fed in via Write, and Frame serializes the current grid. Wrapping is
// grounded on internal/egg/vterm.go's VTerm (same emulator lifecycle:
// Write/Resize/Render/CursorPosition/Close via vt.Callbacks), minus its
// scrollback ring — spec.md §4.6 only asks for the live visible grid,
// never the scrollback itself.
type Mirror struct {
	emu        *vt.Emulator
	mu         sync.Mutex
	cols, rows int
	altScreen  bool
}

// NewMirror creates a Mirror at the given size.
func NewMirror(cols, rows int) *Mirror {
	m := &Mirror{emu: vt.NewEmulator(cols, rows), cols: cols, rows: rows}
	m.emu.SetCallbacks(vt.Callbacks{
		AltScreen: func(on bool) {
			m.altScreen = on
		},
	})
	return m
}

// Write feeds PTY output into the emulator.
func (m *Mirror) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emu.Write(p)
}

// Resize changes the mirrored grid's dimensions.
func (m *Mirror) Resize(cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emu.Resize(cols, rows)
	m.cols, m.rows = cols, rows
}

// Close releases the underlying emulator.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emu.Close()
}

// Frame serializes the mirror's current visible grid into the wire
// format spec.md §4.6 describes.
func (m *Mirror) Frame() Frame {
	m.mu.Lock()
	ansiText := m.emu.Render()
	pos := m.emu.CursorPosition()
	cols, rows := m.cols, m.rows
	m.mu.Unlock()

	grid, _, _ := parseGrid(ansiText, cols, rows)
	return render(grid, cols, rows, pos.X, pos.Y)
}
