package store

import (
	"fmt"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/pathutil"
)

const cwdMismatchAlertType = "cwd-mismatch"

// lookupAncestor adapts the store's node map to pathutil.Lookup so
// NearestAncestorCWD can walk the parent chain without an import cycle.
func (s *Store) lookupAncestor(id string) (pathutil.Ancestor, bool) {
	n, ok := s.state.Nodes[id]
	if !ok {
		return pathutil.Ancestor{}, false
	}
	anc := pathutil.Ancestor{ParentID: n.ParentID}
	switch {
	case n.Kind == node.KindTerminal && n.Terminal != nil && n.Terminal.CWD != "":
		anc.CWD, anc.HasCWD = n.Terminal.CWD, true
	case n.Kind == node.KindDirectory && n.Directory != nil && n.Directory.CWD != "":
		anc.CWD, anc.HasCWD = n.Directory.CWD, true
	}
	return anc, true
}

// checkCWDMismatch recomputes the cwd-mismatch alert for a single node:
// appended when its CWD diverges from its nearest ancestor's CWD (after
// normalization), removed when equal (spec.md §4.3).
func (s *Store) checkCWDMismatch(id string) {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	var cwd string
	switch {
	case n.Kind == node.KindTerminal && n.Terminal != nil:
		cwd = n.Terminal.CWD
	case n.Kind == node.KindDirectory && n.Directory != nil:
		cwd = n.Directory.CWD
	default:
		s.mu.Unlock()
		return
	}
	if cwd == "" {
		s.mu.Unlock()
		return
	}

	parentCWD, ok := pathutil.NearestAncestorCWD(n.ParentID, s.lookupAncestor)
	changed := false
	if ok && pathutil.NormalizeCWD(cwd) != pathutil.NormalizeCWD(parentCWD) {
		if !hasAlert(n.Alerts, cwdMismatchAlertType) {
			n.Alerts = append(n.Alerts, node.Alert{
				Type:      cwdMismatchAlertType,
				Message:   fmt.Sprintf("Working directory changed to %s (parent: %s)", cwd, parentCWD),
				Timestamp: nowMillis(),
			})
			changed = true
		}
	} else {
		if removed, ok := removeAlert(n.Alerts, cwdMismatchAlertType); ok {
			n.Alerts = removed
			changed = true
		}
	}
	if changed {
		s.state.Nodes[id] = n
	}
	s.mu.Unlock()

	if changed {
		s.broadcastUpdated(id, map[string]any{"alerts": n.Alerts})
		s.schedulePersist()
	}
}

// recheckSubtreeCWD reschecks the cwd-mismatch alert for id and every
// live descendant (spec.md §4.3: "Recheck whole subtrees on reparent").
func (s *Store) recheckSubtreeCWD(id string) {
	s.mu.RLock()
	ids := []string{id}
	frontier := []string{id}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for cid, c := range s.state.Nodes {
			if c.ParentID == cur {
				ids = append(ids, cid)
				frontier = append(frontier, cid)
			}
		}
	}
	s.mu.RUnlock()

	for _, nid := range ids {
		s.checkCWDMismatch(nid)
	}
}

func hasAlert(alerts []node.Alert, alertType string) bool {
	for _, a := range alerts {
		if a.Type == alertType {
			return true
		}
	}
	return false
}

func removeAlert(alerts []node.Alert, alertType string) ([]node.Alert, bool) {
	for i, a := range alerts {
		if a.Type == alertType {
			out := append([]node.Alert(nil), alerts[:i]...)
			out = append(out, alerts[i+1:]...)
			return out, true
		}
	}
	return alerts, false
}
