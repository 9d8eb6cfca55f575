package scrollback

import (
	"strings"
	"testing"
)

func TestUnderCapReturnsExactConcatenation(t *testing.T) {
	b := New()
	b.Write("hello ")
	b.Write("world")
	if got := b.Contents(); got != "hello world" {
		t.Fatalf("Contents() = %q, want %q", got, "hello world")
	}
}

func TestTrimCutsAtNewlineWithinScanWindow(t *testing.T) {
	b := &Buffer{Cap: 100, TrimTo: 40}
	// Build content so the exact cut point lands mid-line, but a newline
	// follows shortly after within the scan window.
	line := strings.Repeat("x", 30) + "\n"
	b.Write(strings.Repeat(line, 5)) // 155 bytes, several newlines
	got := b.Contents()
	if len(got) > 100 {
		t.Fatalf("Contents() length = %d, want <= 100", len(got))
	}
	if len(got) > 0 && got[len(got)-1] != '\n' {
		// every line ends in a newline by construction; only start alignment is checked
	}
	if !strings.HasPrefix(got, "x") {
		t.Fatalf("expected trimmed content to start at a line boundary, got %q", got)
	}
}

func TestTrimFallsBackToExactCutWhenNoNewlineInWindow(t *testing.T) {
	b := &Buffer{Cap: 100, TrimTo: 40}
	b.Write(strings.Repeat("x", 200)) // no newlines at all
	got := b.Contents()
	if len(got) != 40 {
		t.Fatalf("Contents() length = %d, want 40 (exact cut, no newline found)", len(got))
	}
}

func TestLenTracksCurrentSize(t *testing.T) {
	b := New()
	b.Write("abc")
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
}
