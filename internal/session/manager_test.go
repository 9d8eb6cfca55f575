package session

import (
	"strings"
	"testing"
	"time"

	"github.com/chriswa/spaceterm/internal/node"
)

func TestCreateWriteDestroyRoundTrip(t *testing.T) {
	dataCh := make(chan []byte, 16)
	exitCh := make(chan int, 1)
	m := New(Callbacks{
		OnData: func(id string, data []byte) { dataCh <- data },
		OnExit: func(id string, exitCode int) { exitCh <- exitCode },
	}, t.TempDir(), 80, 24)

	res, err := m.Create(CreateOptions{Command: "/bin/cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Cols != 80 || res.Rows != 24 {
		t.Fatalf("got cols=%d rows=%d, want 80x24", res.Cols, res.Rows)
	}

	if err := m.Write(res.SessionID, []byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-dataCh:
		if !strings.Contains(string(got), "hello") {
			t.Fatalf("got %q, want it to contain %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed data")
	}

	m.Destroy(res.SessionID)
	select {
	case <-exitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit callback")
	}
}

func TestGetScrollbackReturnsAccumulatedOutput(t *testing.T) {
	dataCh := make(chan []byte, 16)
	m := New(Callbacks{OnData: func(id string, data []byte) { dataCh <- data }}, t.TempDir(), 80, 24)
	res, err := m.Create(CreateOptions{Command: "/bin/cat"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Destroy(res.SessionID)

	if err := m.Write(res.SessionID, []byte("line one\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case <-dataCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data")
	}

	sb, err := m.GetScrollback(res.SessionID)
	if err != nil {
		t.Fatalf("GetScrollback: %v", err)
	}
	if !strings.Contains(sb, "line one") {
		t.Fatalf("scrollback = %q, want it to contain %q", sb, "line one")
	}
}

func TestWriteUnknownSessionErrors(t *testing.T) {
	m := New(Callbacks{}, t.TempDir(), 80, 24)
	if err := m.Write("nonexistent", []byte("x")); err == nil {
		t.Fatal("expected error writing to unknown session")
	}
}

func TestNotifyAgentSessionStartClassifiesForkOnPendingStop(t *testing.T) {
	m := New(Callbacks{}, t.TempDir(), 80, 24)
	res, err := m.Create(CreateOptions{Command: "/bin/cat"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Destroy(res.SessionID)

	if _, err := m.NotifyAgentSessionStart(res.SessionID, "sess-a", "startup"); err != nil {
		t.Fatalf("NotifyAgentSessionStart: %v", err)
	}
	if err := m.SetPendingStop(res.SessionID, true); err != nil {
		t.Fatalf("SetPendingStop: %v", err)
	}
	reason, err := m.NotifyAgentSessionStart(res.SessionID, "sess-b", "resume")
	if err != nil {
		t.Fatalf("NotifyAgentSessionStart: %v", err)
	}
	if reason != node.ReasonFork {
		t.Fatalf("reason = %q, want %q", reason, node.ReasonFork)
	}

	sess, _ := m.Get(res.SessionID)
	history := sess.AgentSessionHistory()
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
}

func TestNotifyAgentSessionStartCapsAtTwenty(t *testing.T) {
	m := New(Callbacks{}, t.TempDir(), 80, 24)
	res, err := m.Create(CreateOptions{Command: "/bin/cat"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Destroy(res.SessionID)

	for i := 0; i < AgentSessionHistoryCap+5; i++ {
		if _, err := m.NotifyAgentSessionStart(res.SessionID, "sess", "other"); err != nil {
			t.Fatalf("NotifyAgentSessionStart: %v", err)
		}
	}
	sess, _ := m.Get(res.SessionID)
	if got := len(sess.AgentSessionHistory()); got != AgentSessionHistoryCap {
		t.Fatalf("history len = %d, want %d", got, AgentSessionHistoryCap)
	}
}

func TestPushTitleDedupesAndCaps(t *testing.T) {
	sess := &Session{}
	sess.pushTitle("a")
	sess.pushTitle("b")
	sess.pushTitle("a") // re-occurrence moves to front, no duplicate
	got := sess.ShellTitleHistory()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}

	for i := 0; i < ShellTitleHistoryCap+5; i++ {
		sess.pushTitle(strings.Repeat("t", i+1))
	}
	if n := len(sess.ShellTitleHistory()); n != ShellTitleHistoryCap {
		t.Fatalf("history len = %d, want %d", n, ShellTitleHistoryCap)
	}
}
