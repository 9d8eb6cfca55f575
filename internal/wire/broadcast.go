package wire

import (
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/snapshot"
)

// The methods below are meant to be closed over by the store, session
// manager, and snapshot manager's callback structs at construction time
// in cmd/spacetermd, e.g. store.Callbacks{NodeAdded: srv.HandleNodeAdded}.
// Server itself is constructed first (New), these closures capture its
// pointer, and Attach supplies the components afterward — so the
// callbacks are live the moment their owning component's first mutation
// happens, even though Server's own fields aren't filled in until Attach
// runs.

// HandleNodeAdded fans a new node out to every connected client
// (spec.md §4.4: "node-added... to all connected clients").
func (s *Server) HandleNodeAdded(n node.Node) {
	s.hub.broadcastAll(response{Type: "node-added", Node: n})
}

// HandleNodeUpdated fans a partial node update out to every connected
// client.
func (s *Server) HandleNodeUpdated(id string, partial map[string]any) {
	s.hub.broadcastAll(response{Type: "node-updated", NodeID: id, Partial: partial})
}

// HandleNodeRemoved fans a node removal out to every connected client.
func (s *Server) HandleNodeRemoved(id string) {
	s.hub.broadcastAll(response{Type: "node-removed", NodeID: id})
}

// HandleSessionData delivers PTY output only to clients attached to
// sessionID (spec.md §4.4's "data" fan-out rule), and marks the
// session's snapshot mirror dirty so the next scheduler tick can pick it
// up.
func (s *Server) HandleSessionData(sessionID string, data []byte) {
	s.hub.sendToAttached(sessionID, response{Type: "data", SessionID: sessionID, Data: string(data)})
	if mirror, ok := s.sessionMirror(sessionID); ok {
		mirror.Write(data)
		s.snapshots.MarkDirty(sessionID)
	}
}

// HandleSessionExit delivers a PTY's exit to its attached clients and
// records it in the graph.
func (s *Server) HandleSessionExit(sessionID string, exitCode int) {
	s.hub.sendToAttached(sessionID, response{Type: "exit", SessionID: sessionID, ExitCode: &exitCode})
	if s.store != nil {
		s.store.TerminalExited(sessionID, exitCode)
	}
	s.snapshots.Unregister(sessionID)
	s.mirrorsMu.Lock()
	delete(s.mirrors, sessionID)
	s.mirrorsMu.Unlock()

	s.handleRestartFastExit(sessionID)
}

// HandleSessionTitle records a shell-reported OSC 0/2 title change on
// the owning node.
func (s *Server) HandleSessionTitle(sessionID, title string) {
	if s.store == nil {
		return
	}
	if nodeID, ok := s.store.GetNodeIdForSession(sessionID); ok {
		s.store.UpdateShellTitleHistory(nodeID, title)
	}
}

// HandleSessionCWD records an OSC 7 cwd change on the owning node.
func (s *Server) HandleSessionCWD(sessionID, cwd string) {
	if s.store == nil {
		return
	}
	if nodeID, ok := s.store.GetNodeIdForSession(sessionID); ok {
		s.store.UpdateCwd(nodeID, cwd)
	}
}

// EmitSnapshot is the snapshot.Manager's Emit callback: it delivers a
// freshly rendered frame only to clients in snapshot mode for surfaceID
// (spec.md §4.4's "snapshot" fan-out rule).
func (s *Server) EmitSnapshot(surfaceID string, frame snapshot.Frame) {
	s.hub.sendToSnapshotMode(surfaceID, response{
		Type:      "snapshot",
		SessionID: surfaceID,
		Cols:      frame.Cols,
		RowCount:  frame.RowCount,
		CursorX:   frame.CursorX,
		CursorY:   frame.CursorY,
		Rows:      frame.Rows,
	})
}

// sessionMirror looks up (or lazily creates and registers) the snapshot
// mirror backing sessionID, on first PTY output. Lazy rather than
// eager at session-creation time because raw sessions created via the
// "create" verb have no backing node and no caller that would otherwise
// register a mirror for them.
func (s *Server) sessionMirror(sessionID string) (*snapshot.Mirror, bool) {
	s.mirrorsMu.Lock()
	defer s.mirrorsMu.Unlock()
	if m, ok := s.mirrors[sessionID]; ok {
		return m, true
	}
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	cols, rows := sess.Size()
	m := snapshot.NewMirror(cols, rows)
	s.mirrors[sessionID] = m
	s.snapshots.Register(sessionID, m)
	return m, true
}
