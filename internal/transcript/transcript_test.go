package transcript

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type delivery struct {
	surfaceID  string
	entries    []Entry
	total      int
	isBackfill bool
}

func collector() (Deliver, func() []delivery) {
	var mu sync.Mutex
	var got []delivery
	return func(surfaceID string, entries []Entry, total int, isBackfill bool) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, delivery{surfaceID, entries, total, isBackfill})
		}, func() []delivery {
			mu.Lock()
			defer mu.Unlock()
			out := make([]delivery, len(got))
			copy(out, got)
			return out
		}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestWatchExistingFileDeliversBackfill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	os.WriteFile(path, []byte(`{"type":"user","text":"hi"}`+"\n"), 0o644)

	deliver, snapshot := collector()
	w, err := New(deliver, func(agentSessionID, cwd string) string { return path })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	if err := w.Watch("surface-1", "agent-1", "/tmp"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	ds := snapshot()
	if len(ds) != 1 || !ds[0].isBackfill || len(ds[0].entries) != 1 {
		t.Fatalf("got %+v, want one backfill delivery with one entry", ds)
	}
	if ds[0].entries[0].Type != "user" {
		t.Fatalf("type = %q, want user", ds[0].entries[0].Type)
	}
}

func TestWatchMissingFileThenCreateSwitchesToFileWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")

	deliver, snapshot := collector()
	w, err := New(deliver, func(agentSessionID, cwd string) string { return path })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	if err := w.Watch("surface-1", "agent-1", "/tmp"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(snapshot()) != 0 {
		t.Fatal("expected no delivery before file exists")
	}

	os.WriteFile(path, []byte(`{"type":"assistant","text":"ok"}`+"\n"), 0o644)

	waitFor(t, func() bool { return len(snapshot()) > 0 })
	ds := snapshot()
	if len(ds) != 1 || ds[0].isBackfill {
		t.Fatalf("got %+v, want one non-backfill delivery after create", ds)
	}
}

func TestDrainSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	os.WriteFile(path, []byte(`{"type":"user","text":"hi"}`+"\n"), 0o644)

	deliver, snapshot := collector()
	w, err := New(deliver, func(agentSessionID, cwd string) string { return path })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	w.Watch("surface-1", "agent-1", "/tmp")

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("not json\n")
	f.WriteString(`{"type":"assistant","text":"ok"}` + "\n")
	f.Close()

	waitFor(t, func() bool { return len(snapshot()) == 2 })
	ds := snapshot()
	if len(ds[1].entries) != 1 || ds[1].entries[0].Type != "assistant" {
		t.Fatalf("got %+v, want malformed line skipped and one entry", ds[1])
	}
}

func TestUnwatchStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	os.WriteFile(path, []byte(`{"type":"user","text":"hi"}`+"\n"), 0o644)

	deliver, snapshot := collector()
	w, err := New(deliver, func(agentSessionID, cwd string) string { return path })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	w.Watch("surface-1", "agent-1", "/tmp")
	w.Unwatch("surface-1")

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString(`{"type":"assistant","text":"ok"}` + "\n")
	f.Close()

	time.Sleep(200 * time.Millisecond)
	if len(snapshot()) != 1 {
		t.Fatalf("got %d deliveries, want only the original backfill", len(snapshot()))
	}
}
