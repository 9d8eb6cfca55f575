package session

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/chriswa/spaceterm/internal/batch"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/oscparse"
	"github.com/chriswa/spaceterm/internal/scrollback"
)

// Manager owns every PTY spawned by the server and dispatches their
// events via the Callbacks supplied at construction (spec.md §4.1:
// "the session manager exclusively owns the OS process and PTY
// descriptor").
type Manager struct {
	cb                  Callbacks
	shellIntegrationDir string
	defaultCols         int
	defaultRows         int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New returns a Manager. shellIntegrationDir is the server-owned
// directory under which per-session .zshenv files are written
// (typically Paths.ShellIntegrationDir).
func New(cb Callbacks, shellIntegrationDir string, defaultCols, defaultRows int) *Manager {
	if defaultCols <= 0 {
		defaultCols = DefaultCols
	}
	if defaultRows <= 0 {
		defaultRows = DefaultRows
	}
	return &Manager{
		cb:                   cb,
		shellIntegrationDir: shellIntegrationDir,
		defaultCols:         defaultCols,
		defaultRows:         defaultRows,
		sessions:            make(map[string]*Session),
	}
}

// Create spawns a new PTY per spec.md §4.1.
func (m *Manager) Create(opts CreateOptions) (CreateResult, error) {
	id := newUUID()
	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = m.defaultCols
	}
	if rows <= 0 {
		rows = m.defaultRows
	}

	cwd := resolveCWD(opts.CWD)

	var cmd *exec.Cmd
	if opts.Command != "" {
		cmd = exec.Command(opts.Command, opts.Args...)
		cmd.Env = append(os.Environ(), "SPACETERM_SURFACE_ID="+id)
	} else {
		shellPath, shellName := loginShell()
		cmd = exec.Command(shellPath, "-l")
		env := os.Environ()
		si := shellIntegration{dir: m.shellIntegrationDir}
		switch shellName {
		case "zsh":
			overrides, err := si.zshEnv(id, os.Getenv("ZDOTDIR"))
			if err != nil {
				return CreateResult{}, fmt.Errorf("shell integration: %w", err)
			}
			env = mergeEnv(env, overrides)
		case "bash":
			overrides := si.bashPromptCommand(os.Getenv("PROMPT_COMMAND"))
			env = mergeEnv(env, overrides)
		}
		cmd.Env = append(env, "SPACETERM_SURFACE_ID="+id, "TERM=xterm-256color")
	}
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	cmd.Dir = cwd

	size := &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return CreateResult{}, fmt.Errorf("start pty: %w", err)
	}

	sess := &Session{
		ID:        id,
		PID:       cmd.Process.Pid,
		cmd:       cmd,
		ptmx:      ptmx,
		alive:     true,
		cols:      cols,
		rows:      rows,
		cwd:       cwd,
		startedAt: time.Now(),
	}
	sess.scrollback = scrollback.New()
	sess.batcher = batch.New(func(data []byte) {
		sess.scrollback.Write(string(data))
		if m.cb.OnData != nil {
			m.cb.OnData(id, data)
		}
	})
	sess.osc = oscparse.New(
		func(title string) {
			sess.pushTitle(title)
			if m.cb.OnTitle != nil {
				m.cb.OnTitle(id, title)
			}
		},
		func(cwd string) {
			sess.setCWD(cwd)
			if m.cb.OnCWD != nil {
				m.cb.OnCWD(id, cwd)
			}
		},
	)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	done := make(chan struct{})
	go readPTY(sess, ptmx, sess.batcher.Write)
	go startupWatchdog(sess, done)
	go func() {
		state, waitErr := cmd.Process.Wait()
		exitCode := 0
		if state != nil {
			exitCode = state.ExitCode()
		} else if waitErr != nil {
			exitCode = 1
		}
		ptmx.Close()
		close(done)

		sess.mu.Lock()
		sess.alive = false
		sess.exitCode = exitCode
		sess.exitedAt = time.Now()
		sess.mu.Unlock()
		sess.batcher.Dispose()

		logger.Info("session exited", "sessionId", id, "exitCode", exitCode)
		if m.cb.OnExit != nil {
			m.cb.OnExit(id, exitCode)
		}
	}()

	logger.Info("session created", "sessionId", id, "pid", cmd.Process.Pid, "cols", cols, "rows", rows)
	return CreateResult{SessionID: id, Cols: cols, Rows: rows}, nil
}

// Write sends input to a session's PTY.
func (m *Manager) Write(id string, data []byte) error {
	sess, ok := m.get(id)
	if !ok {
		return errSessionNotFound(id)
	}
	sess.mu.Lock()
	ptmx := sess.ptmx
	sess.mu.Unlock()
	_, err := ptmx.Write(data)
	return err
}

// Resize changes a session's PTY window size.
func (m *Manager) Resize(id string, cols, rows int) error {
	sess, ok := m.get(id)
	if !ok {
		return errSessionNotFound(id)
	}
	sess.mu.Lock()
	sess.cols, sess.rows = cols, rows
	ptmx := sess.ptmx
	sess.mu.Unlock()
	return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Destroy terminates a session's PTY process (SIGTERM, then SIGKILL after
// a grace period) and removes it from the manager.
func (m *Manager) Destroy(id string) {
	sess, ok := m.get(id)
	if !ok {
		return
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	destroy(sess)
}

// DestroyAll terminates every session concurrently; used during daemon
// shutdown.
func (m *Manager) DestroyAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Destroy(id)
		}(id)
	}
	wg.Wait()
}

// SessionInfo is a List() entry.
type SessionInfo struct {
	ID       string
	PID      int
	Cols     int
	Rows     int
	Alive    bool
	ExitCode int
}

// List returns info about every known session.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.mu.Lock()
		out = append(out, SessionInfo{ID: s.ID, PID: s.PID, Cols: s.cols, Rows: s.rows, Alive: s.alive, ExitCode: s.exitCode})
		s.mu.Unlock()
	}
	return out
}

// GetScrollback returns the current scrollback contents for a session.
func (m *Manager) GetScrollback(id string) (string, error) {
	sess, ok := m.get(id)
	if !ok {
		return "", errSessionNotFound(id)
	}
	return sess.scrollback.Contents(), nil
}

// SeedTitleHistory preloads a known title history into a session (used by
// reincarnation, spec.md §4.1).
func (m *Manager) SeedTitleHistory(id string, history []string) error {
	sess, ok := m.get(id)
	if !ok {
		return errSessionNotFound(id)
	}
	sess.mu.Lock()
	sess.shellTitleHistory = append([]string(nil), history...)
	sess.mu.Unlock()
	return nil
}

// NotifyAgentSessionStart implements spec.md §4.1's new-agent-session
// classification: reason="fork" when source="resume", pendingStop was
// set, and the agent session id changed; otherwise reason=source
// (falling back to "resume"). pendingStop is cleared unless this call
// produces a fork.
func (m *Manager) NotifyAgentSessionStart(id, agentSessionID, source string) (node.AgentSessionReason, error) {
	sess, ok := m.get(id)
	if !ok {
		return "", errSessionNotFound(id)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	reason := node.AgentSessionReason(source)
	if reason == "" {
		reason = node.ReasonResume
	}
	isFork := source == "resume" && sess.pendingStop && sess.lastAgentSessionID != "" && sess.lastAgentSessionID != agentSessionID
	if isFork {
		reason = node.ReasonFork
	} else {
		sess.pendingStop = false
	}

	sess.agentSessionHistory = append(sess.agentSessionHistory, node.AgentSessionEntry{
		AgentSessionID: agentSessionID,
		Reason:         reason,
		Timestamp:      time.Now().UnixMilli(),
	})
	if len(sess.agentSessionHistory) > AgentSessionHistoryCap {
		sess.agentSessionHistory = sess.agentSessionHistory[len(sess.agentSessionHistory)-AgentSessionHistoryCap:]
	}
	sess.lastAgentSessionID = agentSessionID
	return reason, nil
}

// SetPendingStop marks/clears the pendingStop flag: set whenever the
// assistant state machine enters a Stop-equivalent (spec.md §4.1).
func (m *Manager) SetPendingStop(id string, v bool) error {
	sess, ok := m.get(id)
	if !ok {
		return errSessionNotFound(id)
	}
	sess.mu.Lock()
	sess.pendingStop = v
	sess.mu.Unlock()
	return nil
}

// Get returns the live Session record for id, for callers (e.g.
// internal/wire) that need direct read access.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.get(id)
}

func (m *Manager) get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func resolveCWD(requested string) string {
	expanded := expandHome(requested)
	if expanded != "" {
		if st, err := os.Stat(expanded); err == nil && st.IsDir() {
			return expanded
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "" || p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

func loginShell() (path, name string) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return shell, filepath.Base(shell)
}

func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		k := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			k = kv[:idx]
		}
		if v, ok := overrides[k]; ok {
			out = append(out, k+"="+v)
			seen[k] = true
			continue
		}
		out = append(out, kv)
	}
	for k, v := range overrides {
		if !seen[k] {
			out = append(out, k+"="+v)
		}
	}
	return out
}
