package assistant

import (
	"strings"

	"github.com/chriswa/spaceterm/internal/transcript"
)

// localCommandTagPrefixes are the well-known XML tags Claude's CLI
// emits for slash commands and inline bash that never reach the LLM
// (spec.md §4.2: "skip entries whose content starts with well-known
// local-command XML tags").
var localCommandTagPrefixes = []string{
	"<command-name>",
	"<command-message>",
	"<command-args>",
	"<local-command-stdout>",
	"<local-command-stderr>",
}

// HandleHook enqueues the transition(s) a hook event implies. The
// PermissionRequest/PostToolUse pending-id bookkeeping is resolved at
// apply time, in source-time order, since it depends on what else has
// already been applied for this surface.
func (e *Engine) HandleHook(ev HookEvent) {
	e.mu.Lock()
	e.enqueue(queued{surfaceID: ev.SurfaceID, sourceTime: ev.SourceTime, hook: &ev})
	e.mu.Unlock()
}

// HandleTranscriptEntries enqueues the transitions implied by newly
// tailed transcript entries. sourceTime is approximated as the delivery
// time since transcript lines carry no independent wall-clock the
// tailer surfaces; this is the field the 500ms reorder window exists to
// smooth over against hook events that do carry one.
func (e *Engine) HandleTranscriptEntries(surfaceID string, entries []transcript.Entry, sourceTime int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range entries {
		te := classifyTranscriptEntry(entry)
		if te == nil {
			continue
		}
		e.enqueue(queued{surfaceID: surfaceID, sourceTime: sourceTime, transcript: te})
	}
}

func classifyTranscriptEntry(entry transcript.Entry) *transcriptEvent {
	switch entry.Type {
	case "assistant":
		return &transcriptEvent{entryType: "assistant"}
	case "user":
		msg, _ := entry.Raw["message"].(map[string]any)
		content := msg["content"]
		switch c := content.(type) {
		case string:
			for _, tag := range localCommandTagPrefixes {
				if strings.HasPrefix(strings.TrimSpace(c), tag) {
					return nil
				}
			}
			return &transcriptEvent{entryType: "user-text"}
		case []any:
			if toolResultRejected(c) {
				return &transcriptEvent{entryType: "user-rejected"}
			}
			return nil
		}
	}
	return nil
}

func toolResultRejected(blocks []any) bool {
	for _, b := range blocks {
		m, ok := b.(map[string]any)
		if !ok || m["type"] != "tool_result" {
			continue
		}
		text := toolResultText(m["content"])
		if strings.Contains(text, "interrupted by user") || strings.Contains(text, "rejected") {
			return true
		}
	}
	return false
}

func toolResultText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var sb strings.Builder
		for _, b := range c {
			m, ok := b.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				sb.WriteString(t)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// HandleStatusLine enqueues a status-line ping (spec.md §4.2: "resets
// stale timer; unstucks if stuck").
func (e *Engine) HandleStatusLine(ev StatusLineEvent) {
	e.mu.Lock()
	e.enqueue(queued{surfaceID: ev.SurfaceID, sourceTime: ev.SourceTime, statusLine: &ev})
	e.mu.Unlock()
}

// HandleClientWrite handles a write the client sent to the PTY. A bare
// carriage return from a waiting state ends the wait (spec.md §4.2).
func (e *Engine) HandleClientWrite(surfaceID, data string) {
	e.mu.Lock()
	e.enqueue(queued{surfaceID: surfaceID, sourceTime: nowMillis(), clientWriteData: data})
	e.mu.Unlock()
}

// MarkRead applies a direct read/unread mark immediately; it carries no
// source-time ambiguity to reconcile so it bypasses the queue.
func (e *Engine) MarkRead(surfaceID string, unread bool) {
	e.store.UpdateClaudeStatusUnread(surfaceID, unread)
	e.logDecision(surfaceID, "client", "mark-read", "", "", unread)
}

func (e *Engine) enqueue(q queued) {
	e.queue = append(e.queue, q)
}
