// Package session owns every PTY spawned by the server (spec.md §4.1).
// PTY spawn and the graceful-teardown/startup-watchdog shape are grounded
// on the teacher's internal/egg/server.go (RunSession, readPTY, shutdown,
// startupWatchdog); the ring buffer that this package's per-session
// scrollback/batcher wiring otherwise resembles is grounded on the
// original spaceterm pty-daemon in other_examples.
package session

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/chriswa/spaceterm/internal/batch"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/oscparse"
	"github.com/chriswa/spaceterm/internal/scrollback"
)

// DefaultCols and DefaultRows are the size a fresh PTY gets absent an
// explicit size in CreateOptions (spec.md §4.1: "default 160×45 size").
const (
	DefaultCols = 160
	DefaultRows = 45
)

// AgentSessionHistoryCap bounds the per-session agent-session history
// (spec.md §4.1: "capped at 20 entries with FIFO eviction").
const AgentSessionHistoryCap = 20

// ShellTitleHistoryCap bounds the flat shell-title-history (spec.md §3).
const ShellTitleHistoryCap = 50

// CreateOptions configures a new PTY session.
type CreateOptions struct {
	CWD     string
	Command string
	Args    []string
	Env     map[string]string
	Cols    int
	Rows    int
}

// CreateResult is returned from Create.
type CreateResult struct {
	SessionID string
	Cols      int
	Rows      int
}

// Callbacks are invoked as a session produces events: OnTitle and OnCWD
// from the session's PTY reader goroutine, OnData from the batcher's
// flush (which may run on the batcher's timer), and OnExit from the
// goroutine waiting on the process. Implementations must not block.
type Callbacks struct {
	OnData  func(sessionID string, data []byte)
	OnExit  func(sessionID string, exitCode int)
	OnTitle func(sessionID string, title string)
	OnCWD   func(sessionID string, cwd string)
}

// Session is the runtime record for one live or recently-exited PTY
// (spec.md §3, "Session (runtime, not persisted)").
type Session struct {
	ID  string
	PID int

	mu                  sync.Mutex
	cmd                 *exec.Cmd
	ptmx                *os.File
	alive               bool
	exitCode            int
	exitedAt            time.Time
	cols, rows          int
	cwd                 string
	startedAt           time.Time
	firstByteSeen       bool
	scrollback          *scrollback.Buffer
	batcher             *batch.Batcher
	osc                 *oscparse.Parser
	shellTitleHistory   []string
	agentSessionHistory []node.AgentSessionEntry
	lastAgentSessionID  string
	pendingStop         bool
	assistantState      node.AssistantState
	unread              bool
	decisionTime        int64
	contextRemainingPct *int
	model               string
}

// Alive reports whether the PTY process is still running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Size returns the current terminal size.
func (s *Session) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// CWD returns the last-known working directory reported via OSC 7.
func (s *Session) CWD() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// ShellTitleHistory returns a copy of the flat, most-recent-first title
// history (spec.md §3).
func (s *Session) ShellTitleHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shellTitleHistory...)
}

// AgentSessionHistory returns a copy of the ordered agent-session history.
func (s *Session) AgentSessionHistory() []node.AgentSessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]node.AgentSessionEntry(nil), s.agentSessionHistory...)
}

func (s *Session) pushTitle(title string) {
	s.mu.Lock()
	// First-occurrence-most-recent: drop an existing copy before
	// prepending (spec.md §3/§4.1 invariant 7).
	for i, t := range s.shellTitleHistory {
		if t == title {
			s.shellTitleHistory = append(s.shellTitleHistory[:i], s.shellTitleHistory[i+1:]...)
			break
		}
	}
	s.shellTitleHistory = append([]string{title}, s.shellTitleHistory...)
	if len(s.shellTitleHistory) > ShellTitleHistoryCap {
		s.shellTitleHistory = s.shellTitleHistory[:ShellTitleHistoryCap]
	}
	s.mu.Unlock()
}

func (s *Session) setCWD(cwd string) {
	s.mu.Lock()
	s.cwd = cwd
	s.mu.Unlock()
}

// readPTY pumps output through the OSC parser, then the batcher, until
// the PTY closes. Grounded on internal/egg/server.go's readPTY: first-byte
// timing log, fixed read buffer, no backpressure (client sockets drop
// bytes under load per spec.md §5, not this goroutine).
func readPTY(sess *Session, ptmx *os.File, onData func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sess.mu.Lock()
			first := !sess.firstByteSeen
			sess.firstByteSeen = true
			sess.mu.Unlock()
			if first {
				logger.Debug("session first pty output", "sessionId", sess.ID, "elapsed", time.Since(sess.startedAt))
			}
			sess.osc.Write(chunk)
			onData(chunk)
		}
		if err != nil {
			return
		}
	}
}

// startupWatchdog logs a diagnostic if no PTY output arrives within 15s.
// Logging-only enrichment; it never changes session state (SPEC_FULL.md
// SUPPLEMENTED FEATURES #2), grounded verbatim on
// internal/egg/server.go's startupWatchdog.
func startupWatchdog(sess *Session, done <-chan struct{}) {
	select {
	case <-time.After(15 * time.Second):
		sess.mu.Lock()
		seen := sess.firstByteSeen
		pid := sess.PID
		sess.mu.Unlock()
		if !seen {
			alive := processAlive(pid)
			logger.Warn("session produced no output after 15s", "sessionId", sess.ID, "pid", pid, "processAlive", alive)
		}
	case <-done:
	}
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// destroy sends SIGTERM, waits briefly, then SIGKILLs if still alive
// (SPEC_FULL.md SUPPLEMENTED FEATURES #3, grounded on
// internal/egg/server.go's shutdown).
func destroy(sess *Session) {
	sess.mu.Lock()
	cmd := sess.cmd
	alive := sess.alive
	sess.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !alive {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	time.Sleep(3 * time.Second)
	if cmd.Process.Signal(syscall.Signal(0)) == nil {
		_ = cmd.Process.Kill()
	}
}

func newUUID() string {
	return uuid.NewString()
}

func errSessionNotFound(id string) error {
	return fmt.Errorf("session not found: %s", id)
}
