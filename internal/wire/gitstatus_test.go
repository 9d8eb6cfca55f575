package wire

import (
	"testing"

	"github.com/chriswa/spaceterm/internal/node"
)

func TestParseAheadBehind(t *testing.T) {
	gs := &node.GitStatus{}
	parseAheadBehind("+3 -1", gs)
	if gs.Ahead != 3 || gs.Behind != 1 {
		t.Fatalf("got ahead=%d behind=%d, want 3/1", gs.Ahead, gs.Behind)
	}
}

func TestParseAheadBehindMalformedIsIgnored(t *testing.T) {
	gs := &node.GitStatus{}
	parseAheadBehind("garbage", gs)
	if gs.Ahead != 0 || gs.Behind != 0 {
		t.Fatalf("malformed field should leave counts at zero, got ahead=%d behind=%d", gs.Ahead, gs.Behind)
	}
}

func TestClassifyChangeStagedOnly(t *testing.T) {
	gs := &node.GitStatus{}
	classifyChange("1 M. N... 100644 100644 100644 abc def file.go", gs)
	if gs.Staged != 1 || gs.Unstaged != 0 {
		t.Fatalf("got staged=%d unstaged=%d, want 1/0", gs.Staged, gs.Unstaged)
	}
}

func TestClassifyChangeUnstagedOnly(t *testing.T) {
	gs := &node.GitStatus{}
	classifyChange("1 .M N... 100644 100644 100644 abc def file.go", gs)
	if gs.Staged != 0 || gs.Unstaged != 1 {
		t.Fatalf("got staged=%d unstaged=%d, want 0/1", gs.Staged, gs.Unstaged)
	}
}

func TestClassifyChangeStagedAndUnstaged(t *testing.T) {
	gs := &node.GitStatus{}
	classifyChange("1 MM N... 100644 100644 100644 abc def file.go", gs)
	if gs.Staged != 1 || gs.Unstaged != 1 {
		t.Fatalf("got staged=%d unstaged=%d, want 1/1", gs.Staged, gs.Unstaged)
	}
}

func TestClassifyChangeAccumulatesAcrossLines(t *testing.T) {
	gs := &node.GitStatus{}
	classifyChange("1 M. N... 100644 100644 100644 abc def a.go", gs)
	classifyChange("1 .M N... 100644 100644 100644 abc def b.go", gs)
	if gs.Staged != 1 || gs.Unstaged != 1 {
		t.Fatalf("got staged=%d unstaged=%d, want 1/1", gs.Staged, gs.Unstaged)
	}
}
