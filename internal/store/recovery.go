package store

import (
	"time"

	"github.com/chriswa/spaceterm/internal/node"
)

// RevivalCandidate is one orphaned terminal the server must act on at
// startup (spec.md §4.3 "Startup recovery").
type RevivalCandidate struct {
	NodeID         string
	AgentSessionID string // set only when Revivable
	Revivable      bool   // resumable agent-session id + transcript file both exist
}

// RevivingWindow is how long the "reviving" marker is held before being
// cleared; if the revived PTY has not exited by then it is treated as a
// normal live terminal (spec.md §4.3, §5).
const RevivingWindow = 30 * time.Second

// RecoverOnStartup scans every node persisted as alive (every one, since
// no PTY survives a process restart) and classifies it: if it carries a
// resumable agent-session id whose transcript file exists on disk, it is
// marked "reviving" and returned as a revival candidate for the caller
// to spawn a new PTY with --resume; otherwise it is archived immediately.
// transcriptExists is injected so this package does not depend on
// internal/transcript's file-layout knowledge.
func (s *Store) RecoverOnStartup(transcriptExists func(agentSessionID string) bool) []RevivalCandidate {
	s.mu.Lock()
	var alive []string
	for id, n := range s.state.Nodes {
		if n.Kind == node.KindTerminal && n.Terminal != nil && n.Terminal.Alive {
			alive = append(alive, id)
		}
	}
	s.mu.Unlock()

	var out []RevivalCandidate
	for _, id := range alive {
		n, ok := s.GetNode(id)
		if !ok || n.Terminal == nil {
			continue
		}
		var lastAgentSession string
		if len(n.Terminal.AgentSessionHistory) > 0 {
			lastAgentSession = n.Terminal.AgentSessionHistory[len(n.Terminal.AgentSessionHistory)-1].AgentSessionID
		}
		if lastAgentSession != "" && transcriptExists(lastAgentSession) {
			s.markReviving(id)
			out = append(out, RevivalCandidate{NodeID: id, AgentSessionID: lastAgentSession, Revivable: true})
		} else {
			s.ArchiveNode(id)
			out = append(out, RevivalCandidate{NodeID: id, Revivable: false})
		}
	}
	return out
}

func (s *Store) markReviving(id string) {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if ok && n.Terminal != nil {
		t := *n.Terminal
		t.Reviving = true
		n.Terminal = &t
		s.state.Nodes[id] = n
	}
	s.mu.Unlock()
}

// RevivalSpawnFailed archives a node whose revival PTY spawn failed
// (spec.md §4.3: "If revival spawn fails the node is archived").
func (s *Store) RevivalSpawnFailed(id string) {
	s.ArchiveNode(id)
}

// ClearRevivingAfterWindow arranges for id's reviving marker to be
// cleared after RevivingWindow, unless the node has already exited (in
// which case TerminalExited already ran and the node either got
// archived or, per spec.md's "remains as a visible dead remnant", stays
// put — either way there is nothing left to clear).
func (s *Store) ClearRevivingAfterWindow(id string) {
	time.AfterFunc(RevivingWindow, func() {
		s.mu.Lock()
		n, ok := s.state.Nodes[id]
		if ok && n.Terminal != nil && n.Terminal.Reviving {
			t := *n.Terminal
			t.Reviving = false
			n.Terminal = &t
			s.state.Nodes[id] = n
		}
		s.mu.Unlock()
		if ok {
			s.schedulePersist()
		}
	})
}
