package assistant

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/store"
	"github.com/chriswa/spaceterm/internal/transcript"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, string) {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "state.json"), node.NewState(), store.Callbacks{})
	n := s.CreateTerminal(store.CreateTerminalOptions{SessionID: "pty-1", ParentID: node.RootID})
	e := New(s, filepath.Join(t.TempDir(), "decisions"))
	return e, s, n.ID
}

func stateOf(s *store.Store, id string) node.AssistantState {
	n, _ := s.GetNode(id)
	if n.Terminal == nil {
		return ""
	}
	return n.Terminal.AssistantState
}

func TestPreToolUseTransitionsToWorking(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: 0})
	e.drain(true)

	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working", got)
	}
}

func TestPermissionRequestRoutesByToolName(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: 0})
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PermissionRequest", ToolName: "ExitPlanMode", SourceTime: 1})
	e.drain(true)

	if got := stateOf(s, id); got != node.StateWaitingPlan {
		t.Fatalf("got %q, want waiting_plan", got)
	}
}

func TestPostToolUseOnlyResolvesTrackedPendingID(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: 0})
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PermissionRequest", SourceTime: 1})
	e.drain(true)
	if got := stateOf(s, id); got != node.StateWaitingPermission {
		t.Fatalf("got %q, want waiting_permission", got)
	}

	// Unrelated PostToolUse id must not clear the wait.
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PostToolUse", ToolUseID: "other-id", SourceTime: 2})
	e.drain(true)
	if got := stateOf(s, id); got != node.StateWaitingPermission {
		t.Fatalf("got %q, want still waiting_permission", got)
	}

	e.HandleHook(HookEvent{SurfaceID: id, Name: "PostToolUse", ToolUseID: "tu-1", SourceTime: 3})
	e.drain(true)
	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working", got)
	}
}

func TestOutOfOrderHookAndTranscriptReconcileToStopped(t *testing.T) {
	e, s, id := newTestEngine(t)
	// B (hook Stop @t=1) enqueued before A (transcript assistant @t=0):
	// arrival order reversed, but sourceTime ordering must still win.
	e.HandleHook(HookEvent{SurfaceID: id, Name: "Stop", SourceTime: 1})
	e.HandleTranscriptEntries(id, []transcript.Entry{{Type: "assistant"}}, 0)
	e.drain(true)

	if got := stateOf(s, id); got != node.StateStopped {
		t.Fatalf("got %q, want stopped", got)
	}
}

func TestTranscriptUserTextSkipsLocalCommandTags(t *testing.T) {
	e, s, id := newTestEngine(t)
	entry := transcript.Entry{Type: "user", Raw: map[string]any{
		"message": map[string]any{"content": "<command-name>/compact</command-name>"},
	}}
	e.HandleTranscriptEntries(id, []transcript.Entry{entry}, 0)
	e.drain(true)

	if got := stateOf(s, id); got != "" {
		t.Fatalf("got %q, want no transition for local-command entry", got)
	}
}

func TestTranscriptToolResultRejectedStops(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: 0})
	e.drain(true)

	entry := transcript.Entry{Type: "user", Raw: map[string]any{
		"message": map[string]any{"content": []any{
			map[string]any{"type": "tool_result", "content": "Request rejected by user"},
		}},
	}}
	e.HandleTranscriptEntries(id, []transcript.Entry{entry}, 1)
	e.drain(true)

	if got := stateOf(s, id); got != node.StateStopped {
		t.Fatalf("got %q, want stopped", got)
	}
}

func TestStaleSweepMarksStuckAfterThreshold(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: nowMillis()})
	e.drain(true)
	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working", got)
	}

	ss := e.state(id)
	ss.lastEventAt = nowMillis() - StaleThreshold.Milliseconds() - 1
	e.staleSweep()

	if got := stateOf(s, id); got != node.StateStuck {
		t.Fatalf("got %q, want stuck", got)
	}
}

func TestStatusLineUnstucksStuckSurface(t *testing.T) {
	e, s, id := newTestEngine(t)
	ss := e.state(id)
	ss.currentState = node.StateStuck
	s.UpdateClaudeState(id, node.StateStuck)

	e.HandleStatusLine(StatusLineEvent{SurfaceID: id, Model: "opus", SourceTime: nowMillis()})
	e.drain(true)

	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working", got)
	}
}

func TestStatusLineRecordsContextRemainingPct(t *testing.T) {
	e, s, id := newTestEngine(t)
	pct := 37
	e.HandleStatusLine(StatusLineEvent{SurfaceID: id, Model: "opus", ContextRemainingPct: &pct, SourceTime: nowMillis()})
	e.drain(true)

	n, _ := s.GetNode(id)
	if n.Terminal.ContextRemainingPct == nil || *n.Terminal.ContextRemainingPct != 37 {
		t.Fatalf("got %+v, want contextRemainingPct=37", n.Terminal.ContextRemainingPct)
	}
}

func TestStatusLineWithoutContextRemainingPctLeavesItUnset(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleStatusLine(StatusLineEvent{SurfaceID: id, Model: "opus", SourceTime: nowMillis()})
	e.drain(true)

	n, _ := s.GetNode(id)
	if n.Terminal.ContextRemainingPct != nil {
		t.Fatalf("got %+v, want nil", n.Terminal.ContextRemainingPct)
	}
}

func TestClientWriteCarriageReturnEndsWait(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: 0})
	e.HandleHook(HookEvent{SurfaceID: id, Name: "PermissionRequest", SourceTime: 1})
	e.drain(true)

	e.HandleClientWrite(id, "\r")
	e.drain(true)

	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working", got)
	}
}

func TestClientWriteAlwaysClearsUnread(t *testing.T) {
	e, s, id := newTestEngine(t)
	e.MarkRead(id, true)
	e.HandleClientWrite(id, "x")
	e.drain(true)

	n, _ := s.GetNode(id)
	if n.Terminal.Unread {
		t.Fatal("expected unread cleared by client write")
	}
}

func TestRunAppliesQueuedTransitionsOverTime(t *testing.T) {
	e, s, id := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.HandleHook(HookEvent{SurfaceID: id, Name: "PreToolUse", ToolUseID: "tu-1", SourceTime: nowMillis() - ReorderWindow.Milliseconds() - 1})

	<-done
	if got := stateOf(s, id); got != node.StateWorking {
		t.Fatalf("got %q, want working after Run's ticker drained it", got)
	}
}
