package assistant

import (
	"sort"

	"github.com/chriswa/spaceterm/internal/node"
)

// drain moves every queued transition old enough to apply (or, on
// shutdown, every queued transition regardless of age) out of the
// queue, sorts the batch by sourceTime ascending, and applies each in
// turn (spec.md §4.2).
func (e *Engine) drain(flush bool) {
	e.mu.Lock()
	cutoff := nowMillis() - ReorderWindow.Milliseconds()

	var batch, remaining []queued
	for _, q := range e.queue {
		if flush || q.sourceTime < cutoff {
			batch = append(batch, q)
		} else {
			remaining = append(remaining, q)
		}
	}
	e.queue = remaining

	sort.SliceStable(batch, func(i, j int) bool { return batch[i].sourceTime < batch[j].sourceTime })
	for _, q := range batch {
		e.apply(q)
	}
	e.mu.Unlock()
}

// apply resolves one queued event into a concrete effect against its
// surface's tracked state, writing any resulting transition through to
// the store. Must be called with e.mu held.
func (e *Engine) apply(q queued) {
	ss := e.state(q.surfaceID)

	switch {
	case q.hook != nil:
		e.applyHook(q.surfaceID, ss, *q.hook)
	case q.transcript != nil:
		e.applyTranscript(q.surfaceID, ss, q.sourceTime, *q.transcript)
	case q.statusLine != nil:
		e.applyStatusLine(q.surfaceID, ss, *q.statusLine)
	case q.clientWriteData != "":
		e.applyClientWrite(q.surfaceID, ss, q.clientWriteData)
	}
}

func (e *Engine) applyHook(surfaceID string, ss *surfaceState, ev HookEvent) {
	ss.lastEventAt = ev.SourceTime
	var target node.AssistantState
	ok := false
	eventName := ev.Name
	if ev.ToolName != "" {
		eventName = ev.Name + ":" + ev.ToolName
	}

	switch ev.Name {
	case "Stop", "SessionEnd":
		target, ok = node.StateStopped, true
		ss.pendingPermission = make(map[string]bool)
		ss.lastEventAt = 0 // spec.md: a just-restarted session isn't judged by yesterday's clock
	case "PermissionRequest":
		switch ev.ToolName {
		case "ExitPlanMode":
			target, ok = node.StateWaitingPlan, true
		case "AskUserQuestion":
			target, ok = node.StateWaitingQuestion, true
		default:
			target, ok = node.StateWaitingPermission, true
		}
		if ss.lastPreToolUseID != "" {
			ss.pendingPermission[ss.lastPreToolUseID] = true
		}
	case "UserPromptSubmit":
		target, ok = node.StateWorking, true
		ss.pendingPermission = make(map[string]bool)
	case "PreToolUse":
		target, ok = node.StateWorking, true
		ss.lastPreToolUseID = ev.ToolUseID
	case "SubagentStart", "PreCompact":
		target, ok = node.StateWorking, true
	case "PostToolUse", "PostToolUseFailure":
		if ev.ToolUseID != "" && ss.pendingPermission[ev.ToolUseID] {
			delete(ss.pendingPermission, ev.ToolUseID)
			target, ok = node.StateWorking, true
		}
	case "SessionStart":
		if ev.Source == "compact" {
			target, ok = node.StateStopped, true
		}
	}

	if !ok && ss.currentState == node.StateStuck {
		target, ok = node.StateWorking, true
	}
	if ok {
		e.transition(surfaceID, ss, target, "hook", eventName)
	}
}

func (e *Engine) applyTranscript(surfaceID string, ss *surfaceState, sourceTime int64, te transcriptEvent) {
	ss.lastEventAt = sourceTime
	var target node.AssistantState
	switch te.entryType {
	case "assistant":
		target = node.StateWorking
	case "user-text":
		target = node.StateWorking
	case "user-rejected":
		target = node.StateStopped
	default:
		return
	}
	e.transition(surfaceID, ss, target, "transcript", te.entryType)
}

func (e *Engine) applyStatusLine(surfaceID string, ss *surfaceState, ev StatusLineEvent) {
	ss.lastEventAt = ev.SourceTime
	if ev.Model != "" {
		e.store.UpdateClaudeModel(surfaceID, ev.Model)
	}
	if ev.ContextRemainingPct != nil {
		e.store.UpdateClaudeContextRemaining(surfaceID, *ev.ContextRemainingPct)
	}
	if ss.currentState == node.StateStuck {
		e.transition(surfaceID, ss, node.StateWorking, "status-line", "ping")
	}
}

func (e *Engine) applyClientWrite(surfaceID string, ss *surfaceState, data string) {
	e.store.UpdateClaudeStatusUnread(surfaceID, false)
	e.logDecision(surfaceID, "client", "write", string(ss.currentState), string(ss.currentState), false)
	if data == "\r" && ss.currentState != node.StateStopped && ss.currentState != node.StateStuck {
		e.transition(surfaceID, ss, node.StateWorking, "client", "write")
	}
}

// transition applies a resolved target state if it actually changes the
// surface's tracked state, updating the store, the unread flag, and the
// decision log (spec.md §4.2 "Unread flag", "Decision log").
func (e *Engine) transition(surfaceID string, ss *surfaceState, target node.AssistantState, source, eventName string) {
	prev := ss.currentState
	if prev == target {
		return
	}
	ss.currentState = target
	e.store.UpdateClaudeState(surfaceID, target)

	unreadSet := false
	switch target {
	case node.StateStopped, node.StateWaitingPermission, node.StateWaitingQuestion, node.StateWaitingPlan, node.StateStuck:
		e.store.UpdateClaudeStatusUnread(surfaceID, true)
		unreadSet = true
	}
	e.logDecision(surfaceID, source, eventName, string(prev), string(target), unreadSet)
}

// staleSweep transitions any surface stuck in *working* with no events
// for StaleThreshold into *stuck* (spec.md §4.2 "Stale sweep").
func (e *Engine) staleSweep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := nowMillis()
	threshold := StaleThreshold.Milliseconds()
	for surfaceID, ss := range e.surfaces {
		if ss.currentState != node.StateWorking || ss.lastEventAt == 0 {
			continue
		}
		if now-ss.lastEventAt > threshold {
			e.transition(surfaceID, ss, node.StateStuck, "stale-sweep", "timeout")
		}
	}
}
