package wire

import (
	"os"
	"path/filepath"

	"github.com/chriswa/spaceterm/internal/assistant"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/session"
	"github.com/chriswa/spaceterm/internal/store"
)

// handleHookMessage dispatches one hooks.sock message. This socket is
// ingest-only and fire-and-forget (spec.md §4.4): no response is ever
// written, and an unrecognized type is silently ignored rather than
// reported, since the sender (a Claude Code hook script) has nowhere to
// put an error. raw is the exact JSON line the connection received,
// needed only by "hook" messages for the per-surface hook log.
func (s *Server) handleHookMessage(req hookRequest, raw []byte) {
	switch req.Type {
	case "hook":
		s.handleAgentHook(req, raw)
	case "status-line":
		s.handleStatusLine(req)
	case "emit-markdown":
		s.handleEmitMarkdown(req)
	case "spawn-claude-surface":
		s.handleSpawnClaudeSurface(req)
	}
}

// handleAgentHook processes one "hook" message. Hook scripts only ever
// see the PTY session id (injected into their environment as
// SPACETERM_SURFACE_ID by internal/session.Manager.Create), but
// internal/assistant.Engine keys every surface by graph node id — so the
// PTY session id is resolved to its owning node before anything else
// runs, the same translation handlers.go's handleWrite does for client
// input.
func (s *Server) handleAgentHook(req hookRequest, raw []byte) {
	if s.assistantEng == nil || req.SurfaceID == "" {
		return
	}
	nodeID, ok := s.store.GetNodeIdForSession(req.SurfaceID)
	if !ok {
		return
	}

	s.writeHookLog(nodeID, raw)

	s.assistantEng.HandleHook(assistant.HookEvent{
		SurfaceID:  nodeID,
		Name:       req.HookName,
		ToolName:   req.ToolName,
		ToolUseID:  req.ToolUseID,
		Source:     req.Source,
		SourceTime: req.SourceTime,
	})

	if req.HookName == "SessionStart" && req.AgentSessionID != "" {
		if reason, err := s.sessionAgentStart(req); err == nil {
			s.store.UpdateClaudeSessionHistory(nodeID, req.AgentSessionID, reason)
			if s.transcripts != nil {
				s.transcripts.Watch(nodeID, req.AgentSessionID, req.CWD)
			}
		}
	}
	if req.HookName == "Stop" || req.HookName == "SessionEnd" {
		s.sessions.SetPendingStop(req.SurfaceID, true)
	}
	if req.HookName == "PermissionRequest" && req.ToolName == "ExitPlanMode" && req.PlanContent != "" {
		s.handlePlanSnapshot(req, nodeID)
	}
}

// handlePlanSnapshot records a new plan-file version on ExitPlanMode
// (spec.md §4.10: "snapshotting a plan on every ExitPlanMode tool use,
// deduplicating against the previous snapshot") and fans the resulting
// version count out to every client. nodeID is the surface's already-
// resolved graph node id (plancache.Store keys plan paths by node id,
// not PTY session id).
func (s *Server) handlePlanSnapshot(req hookRequest, nodeID string) {
	if s.plans == nil {
		return
	}
	result, err := s.plans.Snapshot(req.AgentSessionID, req.PlanPath, []byte(req.PlanContent))
	if err != nil {
		logger.Log.Warn("wire: plan snapshot failed", "err", err)
		return
	}
	if req.PlanPath != "" {
		s.plans.SetPlanPath(nodeID, req.PlanPath)
	}
	if !result.Recorded {
		return
	}
	s.hub.broadcastAll(response{
		Type:         "plan-cache-update",
		NodeID:       nodeID,
		PlanPath:     req.PlanPath,
		VersionCount: result.Total,
	})
}

func (s *Server) sessionAgentStart(req hookRequest) (node.AgentSessionReason, error) {
	return s.sessions.NotifyAgentSessionStart(req.SurfaceID, req.AgentSessionID, req.Source)
}

// writeHookLog appends the raw hook message to nodeID's per-surface
// JSON-lines file, before the event is forwarded to the state machine
// (spec.md §4.4: "first logged to a per-surface JSON-lines file then
// forwarded to the state machine"). Grounded on internal/assistant's
// decisionlog.go logDecision: write failures are swallowed, since this
// is a debugging aid, not load-bearing state.
func (s *Server) writeHookLog(nodeID string, raw []byte) {
	if s.paths.HookLogsDir == "" || len(raw) == 0 {
		return
	}
	if err := os.MkdirAll(s.paths.HookLogsDir, 0o755); err != nil {
		return
	}
	path := filepath.Join(s.paths.HookLogsDir, nodeID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(raw)
	f.Write([]byte("\n"))
}

func (s *Server) handleStatusLine(req hookRequest) {
	if s.assistantEng == nil || req.SurfaceID == "" {
		return
	}
	nodeID, ok := s.store.GetNodeIdForSession(req.SurfaceID)
	if !ok {
		return
	}
	s.assistantEng.HandleStatusLine(assistant.StatusLineEvent{
		SurfaceID:           nodeID,
		Model:               req.Model,
		ContextRemainingPct: req.ContextRemainingPct,
		SourceTime:          req.SourceTime,
	})
}

// handleEmitMarkdown writes hook-sourced markdown into the graph: it
// updates an existing markdown node's content if SurfaceID names one,
// otherwise creates a fresh markdown node under root. Unlike the
// terminal-scoped hooks above, SurfaceID here already names the
// markdown node directly — the hook script that emits markdown carries
// an explicit target node id rather than a PTY session id.
func (s *Server) handleEmitMarkdown(req hookRequest) {
	if req.SurfaceID != "" {
		if err := s.store.SetMarkdownContent(req.SurfaceID, req.Markdown); err == nil {
			return
		}
	}
	st := s.store.GetState()
	x, y := placeNewNode(st, node.RootID, 160, 120, nil)
	s.store.CreateMarkdown(node.RootID, x, y, 320, 240, req.Markdown)
}

// handleSpawnClaudeSurface spawns a new terminal running the given
// command under root (spec.md §4.4: hooks can ask the daemon to open a
// new agent surface, e.g. for a subagent that wants its own window).
func (s *Server) handleSpawnClaudeSurface(req hookRequest) {
	res, err := s.sessions.Create(session.CreateOptions{
		CWD:     req.CWD,
		Command: req.Command,
		Args:    req.Args,
	})
	if err != nil {
		logger.Log.Warn("wire: spawn-claude-surface failed", "err", err)
		return
	}
	st := s.store.GetState()
	hw, hh := nodeHalfExtents(node.Node{Kind: node.KindTerminal, Terminal: &node.Terminal{Cols: res.Cols, Rows: res.Rows}})
	x, y := placeNewNode(st, node.RootID, hw, hh, nil)
	s.store.CreateTerminal(store.CreateTerminalOptions{
		SessionID: res.SessionID,
		ParentID:  node.RootID,
		X:         x,
		Y:         y,
		Cols:      res.Cols,
		Rows:      res.Rows,
		CWD:       req.CWD,
		Name:      req.Name,
	})
}
