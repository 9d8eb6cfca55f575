package snapshot

import "testing"

func TestMirrorFrameReflectsWrites(t *testing.T) {
	m := NewMirror(20, 3)
	defer m.Close()

	m.Write([]byte("hello"))

	f := m.Frame()
	if f.Cols != 20 || f.RowCount != 3 {
		t.Fatalf("got cols=%d rows=%d, want 20x3", f.Cols, f.RowCount)
	}
	if len(f.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(f.Rows))
	}
	if f.Rows[0][0].Text[:5] != "hello" {
		t.Fatalf("got %q, want text starting with hello", f.Rows[0][0].Text)
	}
}

func TestMirrorFrameCursorPosition(t *testing.T) {
	m := NewMirror(20, 3)
	defer m.Close()

	m.Write([]byte("\x1b[2;5Hx"))
	f := m.Frame()

	if f.CursorX != 5 || f.CursorY != 1 {
		t.Fatalf("cursor = (%d,%d), want (5,1)", f.CursorX, f.CursorY)
	}
}

func TestMirrorResize(t *testing.T) {
	m := NewMirror(10, 2)
	defer m.Close()

	m.Resize(30, 5)
	f := m.Frame()
	if f.Cols != 30 || f.RowCount != 5 {
		t.Fatalf("got cols=%d rows=%d, want 30x5", f.Cols, f.RowCount)
	}
}
