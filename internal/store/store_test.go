package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chriswa/spaceterm/internal/node"
)

func newTestStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(filepath.Join(t.TempDir(), "state.json"), node.NewState(), rec.callbacks())
	return s, rec
}

type recorder struct {
	mu      sync.Mutex
	added   []string
	updated []string
	removed []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		NodeAdded: func(n node.Node) {
			r.mu.Lock()
			r.added = append(r.added, n.ID)
			r.mu.Unlock()
		},
		NodeUpdated: func(id string, _ map[string]any) {
			r.mu.Lock()
			r.updated = append(r.updated, id)
			r.mu.Unlock()
		},
		NodeRemoved: func(id string) {
			r.mu.Lock()
			r.removed = append(r.removed, id)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) sawAdded(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.added {
		if a == id {
			return true
		}
	}
	return false
}

func (r *recorder) sawUpdated(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.updated {
		if u == id {
			return true
		}
	}
	return false
}

func TestCreateTerminalBroadcastsAdded(t *testing.T) {
	s, rec := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID, Cols: 160, Rows: 45})
	if !rec.sawAdded(n.ID) {
		t.Fatal("expected node-added broadcast")
	}
	if !n.Terminal.Alive || n.Terminal.SortKey == 0 {
		t.Fatalf("got %+v, want alive=true and nonzero sortKey", n.Terminal)
	}
	if len(n.Terminal.TerminalSessions) != 1 || n.Terminal.TerminalSessions[0].Trigger != node.TriggerInitial {
		t.Fatalf("got %+v, want one initial terminal-session entry", n.Terminal.TerminalSessions)
	}
}

func TestTerminalExitedArchivesByDefault(t *testing.T) {
	s, rec := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID, Name: "shell"})
	// Non-disposable: give it agent-session history so it survives into the archive.
	s.UpdateClaudeSessionHistory(n.ID, "agent-1", node.ReasonStartup)

	s.TerminalExited("pty-1", 0)

	if _, ok := s.GetNode(n.ID); ok {
		t.Fatal("expected node removed from live map after exit")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	found := false
	for _, r := range rec.removed {
		if r == n.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected node-removed broadcast")
	}
	st := s.GetState()
	if len(st.RootArchivedChildren) != 1 || st.RootArchivedChildren[0].Node.ID != n.ID {
		t.Fatalf("got %+v, want archived entry for %s", st.RootArchivedChildren, n.ID)
	}
}

func TestTerminalExitedDisposableNodeSkipsArchive(t *testing.T) {
	s, _ := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})
	s.TerminalExited("pty-1", 0)

	st := s.GetState()
	if len(st.RootArchivedChildren) != 0 {
		t.Fatalf("expected disposable node to skip archive, got %+v", st.RootArchivedChildren)
	}
	if _, ok := s.GetNode(n.ID); ok {
		t.Fatal("expected node removed")
	}
}

func TestArchiveReparentsLiveChildren(t *testing.T) {
	s, _ := newTestStore(t)
	parent := s.CreateTerminal(CreateTerminalOptions{SessionID: "p", ParentID: node.RootID})
	s.UpdateClaudeSessionHistory(parent.ID, "agent-1", node.ReasonStartup)
	child := s.CreateDirectory(parent.ID, 0, 0, "/tmp")

	s.ArchiveNode(parent.ID)

	got, ok := s.GetNode(child.ID)
	if !ok {
		t.Fatal("expected child to remain live")
	}
	if got.ParentID != node.RootID {
		t.Fatalf("parentId = %q, want root", got.ParentID)
	}
}

func TestUnarchiveRestoresNotAlive(t *testing.T) {
	s, _ := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})
	s.UpdateClaudeSessionHistory(n.ID, "agent-1", node.ReasonStartup)
	s.ArchiveNode(n.ID)

	restored, err := s.UnarchiveNode(node.RootID, n.ID, nil)
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if restored.Terminal.Alive {
		t.Fatal("expected restored terminal to be not-alive")
	}
	if _, ok := s.GetNode(n.ID); !ok {
		t.Fatal("expected restored node to be live again")
	}
}

func TestShellTitleHistoryDedupsAndCaps(t *testing.T) {
	s, _ := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})

	s.UpdateShellTitleHistory(n.ID, "a")
	s.UpdateShellTitleHistory(n.ID, "b")
	s.UpdateShellTitleHistory(n.ID, "a")

	got, _ := s.GetNode(n.ID)
	want := []string{"a", "b"}
	if len(got.Terminal.ShellTitleHistory) != len(want) {
		t.Fatalf("got %v, want %v", got.Terminal.ShellTitleHistory, want)
	}
	for i, w := range want {
		if got.Terminal.ShellTitleHistory[i] != w {
			t.Fatalf("got %v, want %v", got.Terminal.ShellTitleHistory, want)
		}
	}

	for i := 0; i < shellTitleHistoryCap+5; i++ {
		s.UpdateShellTitleHistory(n.ID, string(rune(0x100+i)))
	}
	got, _ = s.GetNode(n.ID)
	if len(got.Terminal.ShellTitleHistory) != shellTitleHistoryCap {
		t.Fatalf("len = %d, want %d", len(got.Terminal.ShellTitleHistory), shellTitleHistoryCap)
	}
}

func TestCWDMismatchAlertAppearsAndClears(t *testing.T) {
	s, _ := newTestStore(t)
	parent := s.CreateDirectory(node.RootID, 0, 0, "/work")
	child := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: parent.ID, CWD: "/work/sub"})

	got, _ := s.GetNode(child.ID)
	if !hasAlert(got.Alerts, cwdMismatchAlertType) {
		t.Fatal("expected cwd-mismatch alert for diverging cwd")
	}

	s.UpdateCwd(child.ID, "/work")
	got, _ = s.GetNode(child.ID)
	if hasAlert(got.Alerts, cwdMismatchAlertType) {
		t.Fatal("expected alert cleared once cwd matches parent")
	}
}

func TestUndoBufferCapsAndFIFOEvicts(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < node.UndoBufferCap+5; i++ {
		s.PushUndoEntry(node.UndoEntry{Kind: "move", Timestamp: int64(i)})
	}
	st := s.GetState()
	if len(st.UndoBuffer) != node.UndoBufferCap {
		t.Fatalf("len = %d, want %d", len(st.UndoBuffer), node.UndoBufferCap)
	}
	if st.UndoBuffer[0].Timestamp != 5 {
		t.Fatalf("oldest retained entry timestamp = %d, want 5 (FIFO eviction)", st.UndoBuffer[0].Timestamp)
	}
}

func TestFlushWritesAtomicStateFile(t *testing.T) {
	s, _ := newTestStore(t)
	s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := os.Stat(s.path); err != nil {
		t.Fatalf("expected state file to exist: %v", err)
	}
	if _, err := os.Stat(s.path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be renamed away, stat err = %v", err)
	}

	reloaded := Load(s.path)
	if len(reloaded.Nodes) != 1 {
		t.Fatalf("got %d nodes after reload, want 1", len(reloaded.Nodes))
	}
}

func TestLoadMissingFileReturnsEmptyState(t *testing.T) {
	st := Load(filepath.Join(t.TempDir(), "missing.json"))
	if st.Version != node.SchemaVersion || len(st.Nodes) != 0 {
		t.Fatalf("got %+v, want fresh empty state", st)
	}
}

func TestRecoverOnStartupArchivesNonResumable(t *testing.T) {
	state := node.NewState()
	state.Nodes["t1"] = node.Node{
		ID: "t1", Kind: node.KindTerminal, ParentID: node.RootID,
		Terminal: &node.Terminal{Alive: true, SortKey: 1, TerminalSessions: []node.TerminalSessionEntry{{StartedAt: 1, Trigger: node.TriggerInitial}}},
	}
	s := New(filepath.Join(t.TempDir(), "state.json"), state, Callbacks{})

	candidates := s.RecoverOnStartup(func(string) bool { return false })
	if len(candidates) != 1 || candidates[0].Revivable {
		t.Fatalf("got %+v, want one non-revivable candidate", candidates)
	}
	if _, ok := s.GetNode("t1"); ok {
		t.Fatal("expected orphaned non-resumable terminal to be archived")
	}
}

func TestRecoverOnStartupMarksRevivingWhenTranscriptExists(t *testing.T) {
	state := node.NewState()
	state.Nodes["t1"] = node.Node{
		ID: "t1", Kind: node.KindTerminal, ParentID: node.RootID,
		Terminal: &node.Terminal{
			Alive: true, SortKey: 1,
			TerminalSessions:    []node.TerminalSessionEntry{{StartedAt: 1, Trigger: node.TriggerInitial}},
			AgentSessionHistory: []node.AgentSessionEntry{{AgentSessionID: "agent-1", Reason: node.ReasonStartup, Timestamp: 1}},
		},
	}
	s := New(filepath.Join(t.TempDir(), "state.json"), state, Callbacks{})

	candidates := s.RecoverOnStartup(func(id string) bool { return id == "agent-1" })
	if len(candidates) != 1 || !candidates[0].Revivable {
		t.Fatalf("got %+v, want one revivable candidate", candidates)
	}
	if !s.IsReviving("t1") {
		t.Fatal("expected node marked reviving")
	}
}

func TestUpdateClaudeContextRemainingSetsPct(t *testing.T) {
	s, rec := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})

	if err := s.UpdateClaudeContextRemaining(n.ID, 42); err != nil {
		t.Fatalf("UpdateClaudeContextRemaining: %v", err)
	}
	got, _ := s.GetNode(n.ID)
	if got.Terminal.ContextRemainingPct == nil || *got.Terminal.ContextRemainingPct != 42 {
		t.Fatalf("got %+v, want contextRemainingPct=42", got.Terminal.ContextRemainingPct)
	}
	if !rec.sawUpdated(n.ID) {
		t.Fatal("expected node-updated broadcast")
	}
}

func TestSetExtraCliArgsPersistsValue(t *testing.T) {
	s, _ := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})

	if err := s.SetExtraCliArgs(n.ID, "--verbose --model=opus"); err != nil {
		t.Fatalf("SetExtraCliArgs: %v", err)
	}
	got, _ := s.GetNode(n.ID)
	if got.Terminal.ExtraCliArgs != "--verbose --model=opus" {
		t.Fatalf("got %q, want %q", got.Terminal.ExtraCliArgs, "--verbose --model=opus")
	}
}

func TestSetTerminalRestartingNotBroadcast(t *testing.T) {
	s, rec := newTestStore(t)
	n := s.CreateTerminal(CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})
	rec.mu.Lock()
	rec.updated = nil
	rec.mu.Unlock()

	s.SetTerminalRestarting(n.ID, true)

	got, _ := s.GetNode(n.ID)
	if !got.Terminal.Restarting {
		t.Fatal("expected Restarting=true")
	}
	if rec.sawUpdated(n.ID) {
		t.Fatal("expected no node-updated broadcast for a transient marker")
	}

	s.SetTerminalRestarting(n.ID, false)
	got, _ = s.GetNode(n.ID)
	if got.Terminal.Restarting {
		t.Fatal("expected Restarting=false after clearing")
	}
}
