package wire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chriswa/spaceterm/internal/config"
)

func TestSplitCliArgsEmpty(t *testing.T) {
	if got := splitCliArgs(""); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestSplitCliArgsSingle(t *testing.T) {
	got := splitCliArgs("--verbose")
	want := []string{"--verbose"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitCliArgsMultipleWithExtraSpaces(t *testing.T) {
	got := splitCliArgs("  --model=opus   --verbose ")
	want := []string{"--model=opus", "--verbose"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWriteHookLogAppendsLine(t *testing.T) {
	dir := t.TempDir()
	s := &Server{paths: config.Paths{HookLogsDir: dir}}

	s.writeHookLog("node-1", []byte(`{"type":"hook","hookName":"Stop"}`))
	s.writeHookLog("node-1", []byte(`{"type":"hook","hookName":"SessionStart"}`))

	data, err := os.ReadFile(filepath.Join(dir, "node-1.jsonl"))
	if err != nil {
		t.Fatalf("expected hook log file to exist: %v", err)
	}
	want := "{\"type\":\"hook\",\"hookName\":\"Stop\"}\n{\"type\":\"hook\",\"hookName\":\"SessionStart\"}\n"
	if string(data) != want {
		t.Fatalf("got %q, want %q", string(data), want)
	}
}

func TestWriteHookLogNoopWithoutDir(t *testing.T) {
	s := &Server{paths: config.Paths{}}
	// Must not panic when HookLogsDir is unset.
	s.writeHookLog("node-1", []byte(`{"type":"hook"}`))
}
