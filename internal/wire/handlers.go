package wire

import (
	"os"

	"github.com/chriswa/spaceterm/internal/fork"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/pathutil"
	"github.com/chriswa/spaceterm/internal/session"
	"github.com/chriswa/spaceterm/internal/store"
)

// handleRequest dispatches one spaceterm.sock request line to the
// matching verb handler (spec.md §4.4's request catalogue). Unknown
// types get a server-error reply rather than being dropped, since the
// primary socket is interactive. A panic inside a handler is recovered
// here, logged, and answered with a server-error.
func (s *Server) handleRequest(c *clientConn, req request) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("wire: request handler panicked", "type", req.Type, "panic", r)
			c.writeJSON(serverError("internal error"))
		}
	}()
	switch req.Type {
	// Raw PTY session lifecycle (emergency/CLI use, no graph node).
	case "create":
		s.handleCreate(c, req)
	case "list":
		s.handleList(c)
	case "attach":
		s.handleAttach(c, req)
	case "detach":
		s.handleDetach(c, req)
	case "destroy":
		s.handleDestroySession(c, req)
	case "write":
		s.handleWrite(req)
	case "resize":
		s.handleResize(req)

	// Graph sync.
	case "node-sync-request":
		s.handleSyncRequest(c)

	// Node mutators (spec.md §4.3).
	case "node-move":
		s.ackMutation(c, req.NodeID, s.store.MoveNode(req.NodeID, req.X, req.Y))
	case "node-batch-move":
		s.handleBatchMove(c, req)
	case "node-rename":
		s.ackMutation(c, req.NodeID, s.store.RenameNode(req.NodeID, req.Name))
	case "node-set-color":
		s.ackMutation(c, req.NodeID, s.store.SetNodeColor(req.NodeID, req.ColorPresetID))
	case "node-archive":
		s.store.ArchiveNode(req.NodeID)
		s.ackMutation(c, req.NodeID, nil)
	case "node-unarchive":
		s.handleUnarchive(c, req)
	case "node-archive-delete":
		s.ackMutation(c, req.NodeID, s.store.DeleteArchivedNode(req.ParentID, req.ArchivedID))
	case "node-bring-to-front":
		s.ackMutation(c, req.NodeID, s.store.BringToFront(req.NodeID))
	case "node-reparent":
		s.ackMutation(c, req.NodeID, s.store.ReparentNode(req.NodeID, req.NewParentID))
	case "crab-reorder":
		s.store.ReorderCrabs(req.IDs)
		s.ackMutation(c, "", nil)

	// Typed creators (spec.md §4.3).
	case "terminal-create":
		s.handleTerminalCreate(c, req)
	case "terminal-resize":
		s.handleTerminalResize(c, req)
	case "terminal-reincarnate":
		s.handleTerminalReincarnate(c, req)
	case "directory-add":
		s.handleDirectoryAdd(c, req)
	case "directory-cwd":
		s.ackMutation(c, req.NodeID, s.store.SetDirectoryCWD(req.NodeID, req.CWD))
	case "directory-git-fetch":
		s.handleGitFetch(c, req)
	case "validate-directory":
		s.handleValidatePath(c, req, true)
	case "file-add":
		s.handleFileAdd(c, req)
	case "file-path":
		s.ackMutation(c, req.NodeID, s.store.SetFilePath(req.NodeID, req.Path))
	case "validate-file":
		s.handleValidatePath(c, req, false)
	case "markdown-add":
		s.handleMarkdownAdd(c, req)
	case "markdown-resize":
		s.ackMutation(c, req.NodeID, s.store.SetMarkdownSize(req.NodeID, req.Width, req.Height))
	case "markdown-content":
		s.ackMutation(c, req.NodeID, s.store.SetMarkdownContent(req.NodeID, req.Content))
	case "markdown-set-max-width":
		s.ackMutation(c, req.NodeID, s.store.SetMarkdownMaxWidth(req.NodeID, req.MaxWidth))
	case "title-add":
		s.handleTitleAdd(c, req)
	case "title-text":
		s.ackMutation(c, req.NodeID, s.store.SetTitleText(req.NodeID, req.Text))

	// Assistant-surface operations (spec.md §4.2, §4.10).
	case "set-claude-status-unread":
		s.assistantEng.MarkRead(req.NodeID, req.Unread)
		s.ackMutation(c, req.NodeID, nil)
	case "fork-session":
		s.handleForkSession(c, req)
	case "terminal-restart":
		s.handleTerminalRestart(c, req)

	default:
		c.writeJSON(serverError("Unknown message type: " + req.Type))
	}
}

func (s *Server) ackMutation(c *clientConn, nodeID string, err error) {
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	c.writeJSON(response{Type: "mutation-ack", NodeID: nodeID})
}

// --- raw PTY session lifecycle -------------------------------------------------

func (s *Server) handleCreate(c *clientConn, req request) {
	res, err := s.sessions.Create(session.CreateOptions{
		CWD:     req.CWD,
		Command: req.Command,
		Args:    req.Args,
		Cols:    req.Cols,
		Rows:    req.Rows,
	})
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	c.writeJSON(response{Type: "created", SessionID: res.SessionID, Cols: res.Cols, Rows: res.Rows})
}

func (s *Server) handleList(c *clientConn) {
	infos := s.sessions.List()
	out := make([]sessionInfo, 0, len(infos))
	for _, i := range infos {
		si := sessionInfo{ID: i.ID, PID: i.PID, Cols: i.Cols, Rows: i.Rows, Alive: i.Alive}
		if !i.Alive {
			ec := i.ExitCode
			si.ExitCode = &ec
		}
		out = append(out, si)
	}
	c.writeJSON(response{Type: "listed", Sessions: out})
}

func (s *Server) handleAttach(c *clientConn, req request) {
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		c.writeJSON(serverError("no such session: " + req.SessionID))
		return
	}
	scrollback, err := s.sessions.GetScrollback(req.SessionID)
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	c.attach(req.SessionID)
	cols, rows := sess.Size()
	c.writeJSON(response{Type: "attached", SessionID: req.SessionID, Cols: cols, Rows: rows, Scrollback: scrollback})
}

func (s *Server) handleDetach(c *clientConn, req request) {
	c.detach(req.SessionID)
	c.writeJSON(response{Type: "detached", SessionID: req.SessionID})
}

func (s *Server) handleDestroySession(c *clientConn, req request) {
	s.sessions.Destroy(req.SessionID)
	c.writeJSON(response{Type: "destroyed", SessionID: req.SessionID})
}

func (s *Server) handleWrite(req request) {
	if err := s.sessions.Write(req.SessionID, []byte(req.Data)); err != nil {
		logger.Log.Debug("wire: write to dead session", "sessionId", req.SessionID, "err", err)
	}
	if s.assistantEng != nil {
		if nodeID, ok := s.store.GetNodeIdForSession(req.SessionID); ok {
			s.assistantEng.HandleClientWrite(nodeID, req.Data)
		}
	}
}

func (s *Server) handleResize(req request) {
	if err := s.sessions.Resize(req.SessionID, req.Cols, req.Rows); err != nil {
		logger.Log.Debug("wire: resize of dead session", "sessionId", req.SessionID, "err", err)
		return
	}
	if nodeID, ok := s.store.GetNodeIdForSession(req.SessionID); ok {
		s.store.UpdateTerminalSize(nodeID, req.Cols, req.Rows)
	}
	if s.snapshots != nil {
		s.snapshots.Resize(req.SessionID, req.Cols, req.Rows)
	}
}

// --- graph sync -----------------------------------------------------------------

func (s *Server) handleSyncRequest(c *clientConn) {
	c.writeJSON(response{Type: "sync-state", State: s.store.GetState()})
}

func (s *Server) handleBatchMove(c *clientConn, req request) {
	moves := make([]store.Move, 0, len(req.Moves))
	for _, m := range req.Moves {
		moves = append(moves, store.Move{ID: m.ID, X: m.X, Y: m.Y})
	}
	s.store.BatchMoveNodes(moves)
	s.ackMutation(c, "", nil)
}

func (s *Server) handleUnarchive(c *clientConn, req request) {
	var override *node.Node
	if req.PositionOverride != nil {
		ov, ok := s.store.GetNode(req.ArchivedID)
		if ok {
			ov.X, ov.Y = req.PositionOverride.X, req.PositionOverride.Y
			override = &ov
		}
	}
	n, err := s.store.UnarchiveNode(req.ParentID, req.ArchivedID, override)
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	c.writeJSON(response{Type: "mutation-ack", NodeID: n.ID})
}

// --- typed creators ---------------------------------------------------------------

func (s *Server) handleTerminalCreate(c *clientConn, req request) {
	cwd := req.CWD
	if cwd == "" {
		cwd = pathutil.ExpandHome("~")
	}
	res, err := s.sessions.Create(session.CreateOptions{
		CWD:     cwd,
		Command: req.Command,
		Args:    req.Args,
		Cols:    req.Cols,
		Rows:    req.Rows,
	})
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}

	st := s.store.GetState()
	hw, hh := nodeHalfExtents(node.Node{Kind: node.KindTerminal, Terminal: &node.Terminal{Cols: res.Cols, Rows: res.Rows}})
	x, y := placeNewNode(st, req.ParentID, hw, hh, positionHint(req))

	n := s.store.CreateTerminal(store.CreateTerminalOptions{
		SessionID:           res.SessionID,
		ParentID:            req.ParentID,
		X:                   x,
		Y:                   y,
		Cols:                res.Cols,
		Rows:                res.Rows,
		CWD:                 cwd,
		InitialTitleHistory: req.InitialTitleHistory,
		Name:                req.Name,
		InsertAfterNodeID:   req.InsertAfterNodeID,
	})
	c.writeJSON(response{Type: "node-add-ack", Node: n})
}

func (s *Server) handleTerminalResize(c *clientConn, req request) {
	if err := s.sessions.Resize(req.SessionID, req.Cols, req.Rows); err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	s.ackMutation(c, req.NodeID, s.store.UpdateTerminalSize(req.NodeID, req.Cols, req.Rows))
}

func (s *Server) handleTerminalReincarnate(c *clientConn, req request) {
	res, err := s.sessions.Create(session.CreateOptions{CWD: req.CWD, Cols: req.Cols, Rows: req.Rows})
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	if err := s.store.ReincarnateTerminal(req.NodeID, res.SessionID, res.Cols, res.Rows); err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	s.ackMutation(c, req.NodeID, nil)
}

func (s *Server) handleDirectoryAdd(c *clientConn, req request) {
	st := s.store.GetState()
	x, y := placeNewNode(st, req.ParentID, directoryHalfW, directoryHalfH, positionHint(req))
	n := s.store.CreateDirectory(req.ParentID, x, y, req.CWD)
	c.writeJSON(response{Type: "node-add-ack", Node: n})
}

func (s *Server) handleFileAdd(c *clientConn, req request) {
	st := s.store.GetState()
	x, y := placeNewNode(st, req.ParentID, fileHalfW, fileHalfH, positionHint(req))
	n := s.store.CreateFile(req.ParentID, x, y, req.Path)
	c.writeJSON(response{Type: "node-add-ack", Node: n})
}

func (s *Server) handleMarkdownAdd(c *clientConn, req request) {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 240
	}
	st := s.store.GetState()
	x, y := placeNewNode(st, req.ParentID, float64(width)/2, float64(height)/2, positionHint(req))
	n := s.store.CreateMarkdown(req.ParentID, x, y, width, height, req.Content)
	c.writeJSON(response{Type: "node-add-ack", Node: n})
}

func (s *Server) handleTitleAdd(c *clientConn, req request) {
	st := s.store.GetState()
	x, y := placeNewNode(st, req.ParentID, titleHalfW, titleHalfH, positionHint(req))
	n := s.store.CreateTitle(req.ParentID, x, y, req.Text)
	c.writeJSON(response{Type: "node-add-ack", Node: n})
}

func (s *Server) handleGitFetch(c *clientConn, req request) {
	gs, err := fetchGitStatus(req.CWD)
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	s.ackMutation(c, req.NodeID, s.store.SetDirectoryGitStatus(req.NodeID, gs))
}

func (s *Server) handleValidatePath(c *clientConn, req request, wantDir bool) {
	info, err := statPath(pathutil.ExpandHome(req.Path))
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	if info.isDir != wantDir {
		c.writeJSON(serverError("path kind mismatch"))
		return
	}
	c.writeJSON(response{Type: "mutation-ack", Message: "valid"})
}

func (s *Server) handleForkSession(c *clientConn, req request) {
	n, ok := s.store.GetNode(req.NodeID)
	if !ok || n.Terminal == nil {
		c.writeJSON(serverError("no such terminal: " + req.NodeID))
		return
	}
	sourceAgentSessionID := req.AgentSessionID
	if sourceAgentSessionID == "" && len(n.Terminal.AgentSessionHistory) > 0 {
		sourceAgentSessionID = n.Terminal.AgentSessionHistory[len(n.Terminal.AgentSessionHistory)-1].AgentSessionID
	}
	if sourceAgentSessionID == "" {
		c.writeJSON(serverError("terminal has no resumable agent session"))
		return
	}

	res, err := s.sessions.Create(session.CreateOptions{CWD: n.Terminal.CWD, Cols: n.Terminal.Cols, Rows: n.Terminal.Rows})
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}

	st := s.store.GetState()
	hw, hh := nodeHalfExtents(n)
	x, y := placeNewNode(st, n.ParentID, hw, hh, nil)

	forked := s.store.CreateTerminal(store.CreateTerminalOptions{
		SessionID: res.SessionID,
		ParentID:  n.ParentID,
		X:         x,
		Y:         y,
		Cols:      res.Cols,
		Rows:      res.Rows,
		CWD:       n.Terminal.CWD,
		Name:      forkedNodeName(n),
	})

	result, err := s.forker.Fork(sourceAgentSessionID, n.Terminal.CWD, req.NodeID, forked.ID)
	if err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	s.store.UpdateClaudeSessionHistory(forked.ID, result.NewAgentSessionID, node.ReasonFork)

	c.writeJSON(response{Type: "node-add-ack", Node: forked})
}

// handleTerminalRestart respawns a terminal's PTY in place (spec.md
// §4.3/§5: tags the node "restarting", and if the replacement exits
// quickly, reverts a client-supplied extraCliArgs change and retries
// once before giving up).
func (s *Server) handleTerminalRestart(c *clientConn, req request) {
	n, ok := s.store.GetNode(req.NodeID)
	if !ok || n.Terminal == nil {
		c.writeJSON(serverError("no such terminal: " + req.NodeID))
		return
	}
	previousArgs := n.Terminal.ExtraCliArgs
	newArgs := previousArgs
	if req.HasExtraCliArgs {
		newArgs = req.ExtraCliArgs
	}
	if err := s.restartTerminal(n, newArgs, previousArgs, false); err != nil {
		c.writeJSON(serverError(err.Error()))
		return
	}
	s.ackMutation(c, req.NodeID, nil)
}

func forkedNodeName(n node.Node) string {
	return fork.ForkedName(n.Name)
}

type pathInfo struct{ isDir bool }

func statPath(path string) (pathInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pathInfo{}, err
	}
	return pathInfo{isDir: info.IsDir()}, nil
}
