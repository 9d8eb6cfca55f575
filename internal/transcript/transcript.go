// Package transcript tails the JSON-lines transcript file an agent
// process writes, delivering newly appended entries to a callback
// (spec.md §4.5). The debounced-tail-with-parent-directory-fallback
// design is grounded on other_examples/kylesnowschwartz-tail-claude's
// sessionWatcher (fsnotify.Watcher shared across a single dispatch loop,
// time.AfterFunc debounce per tracked path), adapted from its
// single-goroutine-owns-all-state model to an explicit mutex since this
// package must accept Watch/Unwatch calls from arbitrary caller
// goroutines (the teacher's watcher was only ever driven by its own
// bubbletea event loop).
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce coalesces fsnotify write bursts before a re-read (spec.md
// §4.5: "File-change notifications are debounced 50 ms").
const Debounce = 50 * time.Millisecond

// Entry is one parsed transcript line. Raw carries every field opaquely;
// Type is hoisted out because callers branch on it.
type Entry struct {
	Type string
	Raw  map[string]any
}

// Deliver is called with newly parsed entries for a surface. On the
// first read of an already-existing file isBackfill is true.
type Deliver func(surfaceID string, newEntries []Entry, totalLineCount int, isBackfill bool)

// PathResolver maps (agentSessionID, cwd) to the transcript file it
// should tail. Injected so this package carries no opinion about the
// agent's on-disk project layout.
type PathResolver func(agentSessionID, cwd string) string

type watch struct {
	surfaceID string
	path      string
	dir       string

	offset    int64
	lineCount int

	fileWatched bool
	timer       *time.Timer
}

// Watcher owns one shared fsnotify.Watcher and every active per-surface
// tail.
type Watcher struct {
	deliver  Deliver
	pathFor  PathResolver
	fsw      *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}

	mu        sync.Mutex
	bySurface map[string]*watch
	dirRefs   map[string]int // watched parent dirs, refcounted across surfaces
}

// New creates a Watcher and starts its dispatch loop. Call Close when
// done.
func New(deliver Deliver, pathFor PathResolver) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		deliver:   deliver,
		pathFor:   pathFor,
		fsw:       fsw,
		stopCh:    make(chan struct{}),
		bySurface: make(map[string]*watch),
		dirRefs:   make(map[string]int),
	}
	go w.run()
	return w, nil
}

// Close stops the dispatch loop and the underlying fsnotify watcher.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.fsw.Close()
}

// Watch replaces any prior watch for surfaceID (spec.md §4.5).
func (w *Watcher) Watch(surfaceID, agentSessionID, cwd string) error {
	w.Unwatch(surfaceID)

	path := w.pathFor(agentSessionID, cwd)
	dir := filepath.Dir(path)

	info, err := os.Stat(path)
	if err == nil {
		entries, lineCount, newOffset, rerr := readFrom(path, 0, int(info.Size()))
		if rerr != nil {
			return rerr
		}
		ws := &watch{surfaceID: surfaceID, path: path, dir: dir, offset: newOffset, lineCount: lineCount, fileWatched: true}
		w.mu.Lock()
		w.bySurface[surfaceID] = ws
		w.mu.Unlock()
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.deliver(surfaceID, entries, lineCount, true)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ws := &watch{surfaceID: surfaceID, path: path, dir: dir, fileWatched: false}
	w.mu.Lock()
	w.bySurface[surfaceID] = ws
	w.dirRefs[dir]++
	w.mu.Unlock()
	return w.fsw.Add(dir)
}

// Unwatch cancels watchers and timers for surfaceID.
func (w *Watcher) Unwatch(surfaceID string) {
	w.mu.Lock()
	ws, ok := w.bySurface[surfaceID]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.bySurface, surfaceID)
	if ws.timer != nil {
		ws.timer.Stop()
	}
	if ws.fileWatched {
		w.fsw.Remove(ws.path)
	} else {
		w.dirRefs[ws.dir]--
		if w.dirRefs[ws.dir] <= 0 {
			delete(w.dirRefs, ws.dir)
			w.fsw.Remove(ws.dir)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Non-fatal: a failed stat/read on the next debounce fire will
			// surface the same problem; nothing actionable to do here.
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ws := range w.bySurface {
		switch {
		case ws.fileWatched && ev.Name == ws.path && ev.Has(fsnotify.Write):
			w.armDebounce(ws)
		case !ws.fileWatched && ev.Name == ws.path && ev.Has(fsnotify.Create):
			w.switchToFileWatch(ws)
		}
	}
}

// switchToFileWatch must be called with w.mu held.
func (w *Watcher) switchToFileWatch(ws *watch) {
	if err := w.fsw.Add(ws.path); err != nil {
		return
	}
	ws.fileWatched = true
	w.dirRefs[ws.dir]--
	if w.dirRefs[ws.dir] <= 0 {
		delete(w.dirRefs, ws.dir)
		w.fsw.Remove(ws.dir)
	}
	w.armDebounce(ws)
}

// armDebounce must be called with w.mu held.
func (w *Watcher) armDebounce(ws *watch) {
	if ws.timer != nil {
		ws.timer.Stop()
	}
	surfaceID := ws.surfaceID
	ws.timer = time.AfterFunc(Debounce, func() { w.drain(surfaceID) })
}

func (w *Watcher) drain(surfaceID string) {
	w.mu.Lock()
	ws, ok := w.bySurface[surfaceID]
	if !ok {
		w.mu.Unlock()
		return
	}
	path, offset := ws.path, ws.offset
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.Size() <= offset {
		return
	}

	entries, deltaLines, newOffset, err := readFrom(path, offset, int(info.Size()))
	if err != nil {
		return
	}

	w.mu.Lock()
	ws, ok = w.bySurface[surfaceID]
	if !ok {
		w.mu.Unlock()
		return
	}
	ws.offset = newOffset
	ws.lineCount += deltaLines
	total := ws.lineCount
	w.mu.Unlock()

	w.deliver(surfaceID, entries, total, false)
}

// readFrom reads exactly the bytes between offset and size, parses it
// line by line (malformed lines skipped), and returns the parsed
// entries, the number of lines consumed, and the new offset.
func readFrom(path string, offset int64, size int) ([]Entry, int, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, 0, offset, err
	}
	buf := make([]byte, int64(size)-offset)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, 0, offset, err
	}
	buf = buf[:n]

	var entries []Entry
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines++
		if e, ok := parseLine(scanner.Bytes()); ok {
			entries = append(entries, e)
		}
	}
	// The new offset is exactly where this read left off (the file's size
	// at read time), regardless of whether the last line ended in a
	// newline — counting consumed bytes off the scanner would undercount
	// a trailing partial line and re-parse it next time.
	return entries, lines, offset + int64(n), nil
}

// parseLine produces an entry only if the line is a JSON object with a
// string "type" field (spec.md §4.5). All other fields pass through
// opaquely in Raw.
func parseLine(line []byte) (Entry, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Entry{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false
	}
	typ, ok := raw["type"].(string)
	if !ok {
		return Entry{}, false
	}
	return Entry{Type: typ, Raw: raw}, true
}
