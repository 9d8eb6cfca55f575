package store

import (
	"fmt"

	"github.com/chriswa/spaceterm/internal/node"
)

// UpdateTerminalSize records a PTY resize.
func (s *Store) UpdateTerminalSize(id string, cols, rows int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.Cols, t.Rows = cols, rows
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"cols": cols, "rows": rows}})
	s.schedulePersist()
	return nil
}

// UpdateCwd records a new working directory and rechecks cwd-mismatch
// alerts for the node and its descendants (spec.md §4.3).
func (s *Store) UpdateCwd(id, cwd string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	switch n.Kind {
	case node.KindTerminal:
		if n.Terminal == nil {
			s.mu.Unlock()
			return fmt.Errorf("store: node %q has no terminal payload", id)
		}
		t := *n.Terminal
		t.CWD = cwd
		n.Terminal = &t
	case node.KindDirectory:
		if n.Directory == nil {
			s.mu.Unlock()
			return fmt.Errorf("store: node %q has no directory payload", id)
		}
		d := *n.Directory
		d.CWD = cwd
		n.Directory = &d
	default:
		s.mu.Unlock()
		return fmt.Errorf("store: node %q kind %q has no cwd", id, n.Kind)
	}
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"cwd": cwd})
	s.recheckSubtreeCWD(id)
	s.schedulePersist()
	return nil
}

// UpdateShellTitleHistory pushes a new title onto the node's
// shell-title-history (first-occurrence-most-recent, capped at 50) and
// mirrors the same snapshot into the current terminal-session entry.
func (s *Store) UpdateShellTitleHistory(id, title string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.ShellTitleHistory = pushTitleHistory(t.ShellTitleHistory, title)
	if len(t.TerminalSessions) > 0 {
		last := t.TerminalSessions[len(t.TerminalSessions)-1]
		last.ShellTitleHistory = append([]string(nil), t.ShellTitleHistory...)
		t.TerminalSessions[len(t.TerminalSessions)-1] = last
	}
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"shellTitleHistory": t.ShellTitleHistory}})
	s.schedulePersist()
	return nil
}

// pushTitleHistory implements spec.md §3/§4.3's first-occurrence-most-
// recent, cap-50 rule: on insertion of a duplicate the old occurrence is
// removed first, then the title goes to the front.
func pushTitleHistory(history []string, title string) []string {
	out := make([]string, 0, len(history)+1)
	out = append(out, title)
	for _, h := range history {
		if h != title {
			out = append(out, h)
		}
	}
	if len(out) > shellTitleHistoryCap {
		out = out[:shellTitleHistoryCap]
	}
	return out
}

const shellTitleHistoryCap = 50

// UpdateClaudeSessionHistory appends (or, if the agent session id is
// unchanged, leaves alone) an entry to agentSessionHistory, capped at 20,
// and — when the session actually changed — rolls the current
// terminal-session entry over with trigger "agent-session-change".
func (s *Store) UpdateClaudeSessionHistory(id, agentSessionID string, reason node.AgentSessionReason) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal

	changed := true
	if len(t.AgentSessionHistory) > 0 && t.AgentSessionHistory[len(t.AgentSessionHistory)-1].AgentSessionID == agentSessionID {
		changed = false
	}
	if changed {
		t.AgentSessionHistory = append(t.AgentSessionHistory, node.AgentSessionEntry{
			AgentSessionID: agentSessionID,
			Reason:         reason,
			Timestamp:      nowMillis(),
		})
		const agentHistCap = 20
		if len(t.AgentSessionHistory) > agentHistCap {
			t.AgentSessionHistory = t.AgentSessionHistory[len(t.AgentSessionHistory)-agentHistCap:]
		}
		if len(t.TerminalSessions) > 0 {
			last := t.TerminalSessions[len(t.TerminalSessions)-1]
			last.EndedAt = nowMillis()
			t.TerminalSessions[len(t.TerminalSessions)-1] = last
		}
		t.TerminalSessions = append(t.TerminalSessions, node.TerminalSessionEntry{
			StartedAt:         nowMillis(),
			Trigger:           node.TriggerAgentSessionChange,
			AgentSessionID:    agentSessionID,
			ShellTitleHistory: append([]string(nil), t.ShellTitleHistory...),
		})
	}
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	if changed {
		s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"agentSessionHistory": t.AgentSessionHistory}})
		s.schedulePersist()
	}
	return nil
}

// UpdateClaudeState sets the assistant state and stamps decisionTime.
func (s *Store) UpdateClaudeState(id string, state node.AssistantState) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.AssistantState = state
	t.DecisionTime = nowMillis()
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"assistantState": state, "decisionTime": t.DecisionTime}})
	s.schedulePersist()
	return nil
}

// UpdateClaudeStateDecisionTime re-stamps decisionTime without changing
// the state (used when the reconciler re-confirms an existing state).
func (s *Store) UpdateClaudeStateDecisionTime(id string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.DecisionTime = nowMillis()
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"decisionTime": t.DecisionTime}})
	s.schedulePersist()
	return nil
}

// UpdateClaudeStatusUnread sets the unread flag.
func (s *Store) UpdateClaudeStatusUnread(id string, unread bool) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.Unread = unread
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"unread": unread}})
	s.schedulePersist()
	return nil
}

// UpdateClaudeModel records the model name reported for the current
// agent session.
func (s *Store) UpdateClaudeModel(id, model string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.Model = model
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"model": model}})
	s.schedulePersist()
	return nil
}

// UpdateClaudeContextRemaining records the context-window-remaining
// percentage a status-line ping reports (spec.md §4.4: "a status-line
// message updates the context-remaining percentage and model name").
func (s *Store) UpdateClaudeContextRemaining(id string, pct int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	p := pct
	t.ContextRemainingPct = &p
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"contextRemainingPct": pct}})
	s.schedulePersist()
	return nil
}

// SetExtraCliArgs records the extra CLI arguments a terminal was last
// (re)spawned with, so a fast-exiting restart can revert to whatever was
// set before the change (spec.md §4.3/§5).
func (s *Store) SetExtraCliArgs(id, extraCliArgs string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", id)
	}
	t := *n.Terminal
	t.ExtraCliArgs = extraCliArgs
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"extraCliArgs": extraCliArgs}})
	s.schedulePersist()
	return nil
}

// SetTerminalRestarting sets or clears the transient "restarting"
// recovery marker (spec.md §4.3: tags the node "restarting" for up to
// 10 s around a manual terminal-restart). Never broadcast or persisted,
// same as Reviving.
func (s *Store) SetTerminalRestarting(id string, restarting bool) {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if ok && n.Terminal != nil {
		t := *n.Terminal
		t.Restarting = restarting
		n.Terminal = &t
		s.state.Nodes[id] = n
	}
	s.mu.Unlock()
}
