package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chriswa/spaceterm/internal/node"
)

// Load reads state.json at path. A missing file, a parse failure, or a
// document lacking version+nodes is treated as empty (spec.md §4.3).
// Backfills missing terminal sortKeys (assigned in terminal-session-start
// order). A missing rootArchivedChildren or undoBuffer loads as a nil
// slice and missing assistant-status flags as false — the zero values,
// with no further code.
func Load(path string) *node.State {
	data, err := os.ReadFile(path)
	if err != nil {
		return node.NewState()
	}
	var s node.State
	if err := json.Unmarshal(data, &s); err != nil {
		return node.NewState()
	}
	if s.Version == 0 || s.Nodes == nil {
		return node.NewState()
	}
	backfillSortKeys(&s)
	return &s
}

// backfillSortKeys assigns a sortKey to any terminal node missing one
// (zero value), ordered by each node's earliest terminalSessions start
// time, so older state.json files written before sortKey existed load
// with a stable, sensible order.
func backfillSortKeys(s *node.State) {
	type entry struct {
		id      string
		started int64
	}
	var missing []entry
	for id, n := range s.Nodes {
		if n.Kind != node.KindTerminal || n.Terminal == nil || n.Terminal.SortKey != 0 {
			continue
		}
		var started int64
		if len(n.Terminal.TerminalSessions) > 0 {
			started = n.Terminal.TerminalSessions[0].StartedAt
		}
		missing = append(missing, entry{id: id, started: started})
	}
	for i := 1; i < len(missing); i++ {
		for j := i; j > 0 && missing[j-1].started > missing[j].started; j-- {
			missing[j-1], missing[j] = missing[j], missing[j-1]
		}
	}
	for i, e := range missing {
		t := *s.Nodes[e.id].Terminal
		t.SortKey = int64(i + 1)
		n := s.Nodes[e.id]
		n.Terminal = &t
		s.Nodes[e.id] = n
	}
}

// schedulePersist arms (or re-arms) the debounce timer. It only touches
// persistMu/persistTimer, so it may be called with or without s.mu held.
func (s *Store) schedulePersist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.persistTimer = time.AfterFunc(PersistDebounce, func() {
		_ = s.persistNow()
	})
}

// Flush forces a synchronous persist, cancelling any pending debounce
// timer. Called on shutdown (spec.md §4.3: "On shutdown a synchronous
// persist is forced").
func (s *Store) Flush() error {
	s.persistMu.Lock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
		s.persistTimer = nil
	}
	s.persistMu.Unlock()
	return s.persistNow()
}

// persistNow serializes the current state and writes it atomically:
// marshal, write to "<path>.tmp", fsync, rename over path.
func (s *Store) persistNow() error {
	s.mu.Lock()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	snapshot.StripEphemeral()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// EnsureDir creates the parent directory of path if it does not exist,
// so Load/persistNow can assume it's there.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
