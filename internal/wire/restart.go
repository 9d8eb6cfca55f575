package wire

import (
	"time"

	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/session"
)

// restartWindow is how long a manually restarted terminal is tagged
// "restarting" before the server stops watching for a fast exit
// (spec.md §4.3/§5: "tags the node restarting for up to 10 s").
const restartWindow = 10 * time.Second

// restartAttempt tracks one in-flight manual restart, keyed by the new
// PTY's session id so HandleSessionExit can recognize a fast exit.
type restartAttempt struct {
	nodeID       string
	previousArgs string
	isRetry      bool
}

// splitCliArgs turns a terminal's persisted extraCliArgs string into an
// argument list for session.CreateOptions. A bare space-separated split
// matches how the field is edited (a single freeform string) and how
// the teacher's own command lines are built.
func splitCliArgs(extraCliArgs string) []string {
	if extraCliArgs == "" {
		return nil
	}
	var args []string
	start := -1
	for i, r := range extraCliArgs {
		if r == ' ' {
			if start >= 0 {
				args = append(args, extraCliArgs[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		args = append(args, extraCliArgs[start:])
	}
	return args
}

// restartTerminal destroys a terminal's current PTY and spawns a
// replacement with newArgs, tagging the node "restarting" for
// restartWindow. previousArgs is what a fast exit should revert to;
// isRetry marks this as that one revert attempt, so a second fast exit
// gives up instead of looping (spec.md §4.7: "for restart failures the
// previous CLI args are re-tried once").
func (s *Server) restartTerminal(n node.Node, newArgs, previousArgs string, isRetry bool) error {
	s.store.SetTerminalRestarting(n.ID, true)
	s.sessions.Destroy(n.Terminal.SessionID)
	s.store.SetExtraCliArgs(n.ID, newArgs)

	res, err := s.sessions.Create(session.CreateOptions{
		CWD:  n.Terminal.CWD,
		Args: splitCliArgs(newArgs),
		Cols: n.Terminal.Cols,
		Rows: n.Terminal.Rows,
	})
	if err != nil {
		s.store.SetTerminalRestarting(n.ID, false)
		return err
	}
	if err := s.store.ReincarnateTerminal(n.ID, res.SessionID, res.Cols, res.Rows); err != nil {
		s.store.SetTerminalRestarting(n.ID, false)
		return err
	}
	// ReincarnateTerminal clears the restarting marker unconditionally
	// (it also backs startup revival, which has no restart window of its
	// own); re-set it so the fast-exit check below still applies to the
	// freshly spawned PTY.
	s.store.SetTerminalRestarting(n.ID, true)

	s.restartsMu.Lock()
	s.restarts[res.SessionID] = restartAttempt{nodeID: n.ID, previousArgs: previousArgs, isRetry: isRetry}
	s.restartsMu.Unlock()

	time.AfterFunc(restartWindow, func() {
		s.restartsMu.Lock()
		_, stillPending := s.restarts[res.SessionID]
		delete(s.restarts, res.SessionID)
		s.restartsMu.Unlock()
		if stillPending {
			s.store.SetTerminalRestarting(n.ID, false)
		}
	})
	return nil
}

// handleRestartFastExit is called from HandleSessionExit for every
// exited PTY; it only acts when sessionID belongs to a tracked restart
// attempt still inside its window (spec.md §5: "if the new PTY exits
// within that window and is not itself a retry, the server reverts the
// extra CLI arguments to the previous value, spawns again, and surfaces
// a toast").
func (s *Server) handleRestartFastExit(sessionID string) {
	s.restartsMu.Lock()
	att, ok := s.restarts[sessionID]
	if ok {
		delete(s.restarts, sessionID)
	}
	s.restartsMu.Unlock()
	if !ok {
		return
	}

	n, ok := s.store.GetNode(att.nodeID)
	if !ok || n.Terminal == nil {
		return
	}

	if att.isRetry {
		logger.Warn("wire: terminal restart retry also exited quickly, archiving", "node", att.nodeID)
		s.store.SetTerminalRestarting(att.nodeID, false)
		s.store.ArchiveNode(att.nodeID)
		return
	}

	logger.Warn("wire: terminal restart exited quickly, reverting cli args", "node", att.nodeID, "previousArgs", att.previousArgs)
	s.hub.broadcastAll(response{
		Type:    "toast",
		NodeID:  att.nodeID,
		Message: "restart failed, reverted to previous arguments",
	})
	if err := s.restartTerminal(n, att.previousArgs, att.previousArgs, true); err != nil {
		logger.Warn("wire: terminal restart retry failed", "node", att.nodeID, "err", err)
		s.store.ArchiveNode(att.nodeID)
	}
}
