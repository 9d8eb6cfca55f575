package fork

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chriswa/spaceterm/internal/plancache"
)

func writeTranscript(t *testing.T, path string, lines []map[string]any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		data, _ := json.Marshal(l)
		f.Write(data)
		f.Write([]byte("\n"))
	}
}

func readForkedEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatal(err)
		}
		out = append(out, m)
	}
	return out
}

func TestForkDropsSidechainsAndRemapsUUIDs(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.jsonl")
	writeTranscript(t, srcPath, []map[string]any{
		{"type": "user", "uuid": "a", "sessionId": "src"},
		{"type": "assistant", "uuid": "b", "parentUuid": "a", "sessionId": "src"},
		{"type": "assistant", "uuid": "c", "parentUuid": "b", "sessionId": "src", "isSidechain": true},
	})

	pathFor := func(agentSessionID, cwd string) string {
		if agentSessionID == "src" {
			return srcPath
		}
		return filepath.Join(dir, agentSessionID+".jsonl")
	}

	f := New(pathFor, nil)
	result, err := f.Fork("src", "/tmp/proj", "surface-1", "surface-2")
	if err != nil {
		t.Fatal(err)
	}

	entries := readForkedEntries(t, result.NewTranscriptPath)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (sidechain dropped)", len(entries))
	}

	first, second := entries[0], entries[1]
	if first["sessionId"] != result.NewAgentSessionID {
		t.Fatalf("sessionId not rewritten: %v", first["sessionId"])
	}
	ff, ok := first["forkedFrom"].(map[string]any)
	if !ok || ff["sessionId"] != "src" || ff["messageUuid"] != "a" {
		t.Fatalf("forkedFrom missing/wrong: %v", first["forkedFrom"])
	}
	if second["parentUuid"] != first["uuid"] {
		t.Fatalf("parent chain not remapped: parent=%v child uuid=%v", second["parentUuid"], first["uuid"])
	}
}

func TestForkCopiesPlanFileAndRewritesReferences(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.jsonl")
	planPath := filepath.Join(dir, "plan.md")
	if err := os.WriteFile(planPath, []byte("# plan"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeTranscript(t, srcPath, []map[string]any{
		{"type": "assistant", "uuid": "a", "message": map[string]any{"content": "see " + planPath}},
	})

	pathFor := func(agentSessionID, cwd string) string {
		if agentSessionID == "src" {
			return srcPath
		}
		return filepath.Join(dir, agentSessionID+".jsonl")
	}

	plans, err := plancache.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer plans.Close()
	if err := plans.SetPlanPath("surface-1", planPath); err != nil {
		t.Fatal(err)
	}

	f := New(pathFor, plans)
	result, err := f.Fork("src", "/tmp/proj", "surface-1", "surface-2")
	if err != nil {
		t.Fatal(err)
	}
	if result.NewPlanPath == "" {
		t.Fatal("expected a forked plan path")
	}
	if _, err := os.Stat(result.NewPlanPath); err != nil {
		t.Fatalf("forked plan file not written: %v", err)
	}

	entries := readForkedEntries(t, result.NewTranscriptPath)
	content := entries[0]["message"].(map[string]any)["content"].(string)
	if content == "see "+planPath {
		t.Fatal("expected plan path reference to be rewritten")
	}

	got, ok, err := plans.PlanPath("surface-2")
	if err != nil || !ok || got != result.NewPlanPath {
		t.Fatalf("new surface plan path not recorded: %v %v %v", got, ok, err)
	}
}

func TestForkedNameAvoidsDoubleSuffix(t *testing.T) {
	if got := ForkedName(""); got != "Untitled (fork)" {
		t.Fatalf("got %q", got)
	}
	if got := ForkedName("build"); got != "build (fork)" {
		t.Fatalf("got %q", got)
	}
	if got := ForkedName("build (fork)"); got != "build (fork)" {
		t.Fatalf("got %q, want no double suffix", got)
	}
}
