package store

import (
	"fmt"

	"github.com/chriswa/spaceterm/internal/node"
)

// ArchiveNode snapshots the subtree rooted at id into the parent's
// archivedChildren (or the state's RootArchivedChildren if the parent is
// root), reparents the node's live children to the grandparent, and
// removes the node. Disposable nodes skip the archive entirely (spec.md
// §4.3, §3 disposability rule).
func (s *Store) ArchiveNode(id string) {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	disposable := n.IsDisposable()

	var children []string
	for cid, c := range s.state.Nodes {
		if c.ParentID == id {
			children = append(children, cid)
		}
	}
	for _, cid := range children {
		c := s.state.Nodes[cid]
		c.ParentID = n.ParentID
		s.state.Nodes[cid] = c
	}

	delete(s.state.Nodes, id)

	if !disposable {
		entry := node.ArchivedChild{Node: n.Clone(), ArchivedAt: nowMillis()}
		if n.ParentID == node.RootID {
			s.state.RootArchivedChildren = append(s.state.RootArchivedChildren, entry)
		} else if parent, ok := s.state.Nodes[n.ParentID]; ok {
			parent.ArchivedChildren = append(parent.ArchivedChildren, entry)
			s.state.Nodes[n.ParentID] = parent
		} else {
			// Parent itself no longer exists (e.g. concurrent archive); fall
			// back to the root-level archive rather than dropping the record.
			s.state.RootArchivedChildren = append(s.state.RootArchivedChildren, entry)
		}
	}
	s.mu.Unlock()

	for _, cid := range children {
		s.broadcastUpdated(cid, map[string]any{"parentId": n.ParentID})
	}
	s.broadcastRemoved(id)
	s.schedulePersist()
}

// UnarchiveNode restores the archived record identified by archivedID
// (looked up under parentID's archivedChildren, or the root-level list
// if parentID is "root") as a live node under parentID, allocating a
// fresh zIndex. Terminal nodes come back not-alive: their PTY is gone.
func (s *Store) UnarchiveNode(parentID, archivedID string, positionOverride *node.Node) (node.Node, error) {
	s.mu.Lock()

	var list []node.ArchivedChild
	var parent node.Node
	hasParent := parentID != node.RootID
	if hasParent {
		var ok bool
		parent, ok = s.state.Nodes[parentID]
		if !ok {
			s.mu.Unlock()
			return node.Node{}, fmt.Errorf("store: no parent node %q", parentID)
		}
		list = parent.ArchivedChildren
	} else {
		list = s.state.RootArchivedChildren
	}

	idx := -1
	for i, c := range list {
		if c.Node.ID == archivedID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return node.Node{}, fmt.Errorf("store: no archived node %q under %q", archivedID, parentID)
	}

	restored := list[idx].Node.Clone()
	list = append(list[:idx], list[idx+1:]...)

	restored.ParentID = parentID
	restored.ZIndex = s.nextZIndex()
	if positionOverride != nil {
		restored.X, restored.Y = positionOverride.X, positionOverride.Y
	}
	if restored.Terminal != nil {
		t := *restored.Terminal
		t.Alive = false
		t.SessionID = ""
		restored.Terminal = &t
	}
	s.state.Nodes[restored.ID] = restored
	if hasParent {
		parent.ArchivedChildren = list
		s.state.Nodes[parentID] = parent
	} else {
		s.state.RootArchivedChildren = list
	}
	s.mu.Unlock()

	s.broadcastAdded(restored)
	s.schedulePersist()
	return restored, nil
}

// DeleteArchivedNode permanently removes an archive entry.
func (s *Store) DeleteArchivedNode(parentID, archivedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list *[]node.ArchivedChild
	if parentID == node.RootID {
		list = &s.state.RootArchivedChildren
	} else {
		parent, ok := s.state.Nodes[parentID]
		if !ok {
			return fmt.Errorf("store: no parent node %q", parentID)
		}
		list = &parent.ArchivedChildren
		defer func() { s.state.Nodes[parentID] = parent }()
	}

	for i, c := range *list {
		if c.Node.ID == archivedID {
			*list = append((*list)[:i], (*list)[i+1:]...)
			s.schedulePersist()
			return nil
		}
	}
	return fmt.Errorf("store: no archived node %q under %q", archivedID, parentID)
}
