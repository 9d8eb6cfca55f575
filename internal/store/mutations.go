package store

import (
	"fmt"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/google/uuid"
)

// CreateTerminalOptions bundles createTerminal's arguments (spec.md
// §4.3). InsertAfterNodeID, Name, and InitialTitleHistory are optional.
type CreateTerminalOptions struct {
	SessionID          string
	ParentID           string
	X, Y               int
	Cols, Rows         int
	CWD                string
	InitialTitleHistory []string
	Name               string
	InsertAfterNodeID  string
}

// CreateTerminal allocates a zIndex and sortKey, appends the initial
// terminal-session entry, records the pty->node mapping implicitly (via
// Terminal.SessionID), broadcasts node-added, and schedules a persist.
func (s *Store) CreateTerminal(opts CreateTerminalOptions) node.Node {
	s.mu.Lock()
	id := uuid.NewString()
	sortKey := s.nextSortKeyLocked(opts.InsertAfterNodeID)

	n := node.Node{
		ID:       id,
		Kind:     node.KindTerminal,
		ParentID: opts.ParentID,
		X:        opts.X,
		Y:        opts.Y,
		ZIndex:   s.nextZIndex(),
		Name:     opts.Name,
		Terminal: &node.Terminal{
			Alive:      true,
			SessionID:  opts.SessionID,
			Cols:       opts.Cols,
			Rows:       opts.Rows,
			CWD:        opts.CWD,
			SortKey:    sortKey,
			TerminalSessions: []node.TerminalSessionEntry{{
				StartedAt:         nowMillis(),
				Trigger:           node.TriggerInitial,
				ShellTitleHistory: append([]string(nil), opts.InitialTitleHistory...),
			}},
			ShellTitleHistory: append([]string(nil), opts.InitialTitleHistory...),
		},
	}
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.checkCWDMismatch(id)
	s.broadcastAdded(n)
	s.schedulePersist()
	return n
}

// nextSortKeyLocked must be called with s.mu held. If insertAfterID
// names a terminal with a sort key, the new key is inserted one above it
// and every higher key is bumped; otherwise the new key goes at the end.
func (s *Store) nextSortKeyLocked(insertAfterID string) int64 {
	if insertAfterID != "" {
		if after, ok := s.state.Nodes[insertAfterID]; ok && after.Terminal != nil {
			target := after.Terminal.SortKey + 1
			for id, n := range s.state.Nodes {
				if n.Kind == node.KindTerminal && n.Terminal != nil && n.Terminal.SortKey >= target {
					t := *n.Terminal
					t.SortKey++
					n.Terminal = &t
					s.state.Nodes[id] = n
				}
			}
			return target
		}
	}
	var max int64
	for _, n := range s.state.Nodes {
		if n.Kind == node.KindTerminal && n.Terminal != nil && n.Terminal.SortKey > max {
			max = n.Terminal.SortKey
		}
	}
	return max + 1
}

// TerminalExited ends the current terminal-session entry with a close
// timestamp, clears alive, and archives the node unless it is marked
// restarting or reviving (spec.md §4.3).
func (s *Store) TerminalExited(ptySessionID string, exitCode int) {
	id, ok := s.GetNodeIdForSession(ptySessionID)
	if !ok {
		return
	}

	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return
	}
	t := *n.Terminal
	if len(t.TerminalSessions) > 0 {
		last := t.TerminalSessions[len(t.TerminalSessions)-1]
		if last.EndedAt == 0 {
			last.EndedAt = nowMillis()
			t.TerminalSessions[len(t.TerminalSessions)-1] = last
		}
	}
	t.Alive = false
	ec := exitCode
	t.ExitCode = &ec
	restarting := t.Restarting
	reviving := t.Reviving
	n.Terminal = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{
		"terminal": map[string]any{"alive": false, "exitCode": exitCode},
	})

	if !restarting && !reviving {
		s.ArchiveNode(id)
	} else {
		s.schedulePersist()
	}
}

// ReincarnateTerminal sets alive=true, replaces sessionId, and appends a
// new terminal-session entry with trigger "reincarnation" that inherits
// the prior shell-title-history snapshot.
func (s *Store) ReincarnateTerminal(nodeID, newPtyID string, cols, rows int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[nodeID]
	if !ok || n.Terminal == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no terminal node %q", nodeID)
	}
	t := *n.Terminal
	t.Alive = true
	t.SessionID = newPtyID
	t.Cols, t.Rows = cols, rows
	t.ExitCode = nil
	t.Restarting = false
	t.TerminalSessions = append(t.TerminalSessions, node.TerminalSessionEntry{
		StartedAt:         nowMillis(),
		Trigger:           node.TriggerReincarnation,
		ShellTitleHistory: append([]string(nil), t.ShellTitleHistory...),
	})
	n.Terminal = &t
	s.state.Nodes[nodeID] = n
	s.mu.Unlock()

	s.broadcastUpdated(nodeID, map[string]any{
		"terminal": map[string]any{"alive": true, "sessionId": newPtyID, "cols": cols, "rows": rows},
	})
	s.schedulePersist()
	return nil
}

// MoveNode repositions a single node.
func (s *Store) MoveNode(id string, x, y int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	n.X, n.Y = x, y
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"x": x, "y": y})
	s.schedulePersist()
	return nil
}

// Move is a single (id, x, y) move within a BatchMoveNodes call.
type Move struct {
	ID   string
	X, Y int
}

// BatchMoveNodes applies many moves as one broadcast-and-persist batch
// (used for drag operations that move a whole dragged subtree at once).
func (s *Store) BatchMoveNodes(moves []Move) {
	s.mu.Lock()
	applied := make([]Move, 0, len(moves))
	for _, m := range moves {
		n, ok := s.state.Nodes[m.ID]
		if !ok {
			continue
		}
		n.X, n.Y = m.X, m.Y
		s.state.Nodes[m.ID] = n
		applied = append(applied, m)
	}
	s.mu.Unlock()

	for _, m := range applied {
		s.broadcastUpdated(m.ID, map[string]any{"x": m.X, "y": m.Y})
	}
	if len(applied) > 0 {
		s.schedulePersist()
	}
}

// RenameNode sets a node's display name.
func (s *Store) RenameNode(id, name string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	n.Name = name
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"name": name})
	s.schedulePersist()
	return nil
}

// SetNodeColor sets a node's color-preset id.
func (s *Store) SetNodeColor(id, colorPresetID string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	n.ColorPresetID = colorPresetID
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"colorPresetId": colorPresetID})
	s.schedulePersist()
	return nil
}

// BringToFront allocates the next zIndex and stamps lastFocusedAt.
func (s *Store) BringToFront(id string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	n.ZIndex = s.nextZIndex()
	n.LastFocusedAt = nowMillis()
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"zIndex": n.ZIndex, "lastFocusedAt": n.LastFocusedAt})
	s.schedulePersist()
	return nil
}

// ReparentNode moves a node (and thus its whole live subtree) under a
// new parent, then rechecks cwd-mismatch alerts for the subtree
// (spec.md §4.3: "Recheck whole subtrees on reparent").
func (s *Store) ReparentNode(id, newParentID string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no node %q", id)
	}
	n.ParentID = newParentID
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"parentId": newParentID})
	s.recheckSubtreeCWD(id)
	s.schedulePersist()
	return nil
}

// ReorderCrabs reassigns contiguous sortKeys over the given terminal ids
// in the given order.
func (s *Store) ReorderCrabs(idsInOrder []string) {
	s.mu.Lock()
	for i, id := range idsInOrder {
		n, ok := s.state.Nodes[id]
		if !ok || n.Terminal == nil {
			continue
		}
		t := *n.Terminal
		t.SortKey = int64(i + 1)
		n.Terminal = &t
		s.state.Nodes[id] = n
	}
	s.mu.Unlock()

	for _, id := range idsInOrder {
		if n, ok := s.GetNode(id); ok && n.Terminal != nil {
			s.broadcastUpdated(id, map[string]any{"terminal": map[string]any{"sortKey": n.Terminal.SortKey}})
		}
	}
	s.schedulePersist()
}
