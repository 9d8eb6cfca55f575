// Package assistant reconciles hook, transcript, and status-line events
// into each terminal's discrete assistant state (spec.md §4.2). Its
// ticker-driven Engine is grounded on internal/timeline/loop.go's Engine
// (a struct holding its dependencies, Run looping a time.Ticker against
// ctx.Done() until cancelled); the out-of-order reconciliation itself
// has no direct teacher precedent, since the teacher's task engine
// processes one totally-ordered queue, so the 500ms/50ms reorder-drain
// here is new code built to spec.md's own description.
package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/store"
)

// DrainInterval is how often the transition queue is inspected (spec.md
// §4.2: "A drain loop runs every 50 ms").
const DrainInterval = 50 * time.Millisecond

// ReorderWindow is how long a candidate transition waits before it is
// eligible to apply, giving a transcript event racing a hook event time
// to arrive (spec.md §4.2).
const ReorderWindow = 500 * time.Millisecond

// StaleSweepInterval is how often surfaces are checked for staleness
// (spec.md §4.2: "Every 15 s").
const StaleSweepInterval = 15 * time.Second

// StaleThreshold is how long a *working* surface can go without an
// event before it is judged *stuck* (spec.md §4.2: "> 120 s").
const StaleThreshold = 120 * time.Second

// HookEvent is one hook payload delivered over the ingest socket
// (spec.md §4.2).
type HookEvent struct {
	SurfaceID  string
	Name       string // Stop, SessionEnd, PermissionRequest, UserPromptSubmit, PreToolUse, PostToolUse, PostToolUseFailure, SubagentStart, PreCompact, SessionStart
	ToolName   string
	ToolUseID  string
	Source     string // for SessionStart: "compact", "resume", ...
	SourceTime int64
}

// StatusLineEvent is a periodic ping carrying model/context usage
// (spec.md §4.2: "fired by the agent roughly every ten seconds").
type StatusLineEvent struct {
	SurfaceID           string
	Model               string
	ContextRemainingPct *int
	SourceTime          int64
}

// queued is one candidate transition awaiting its reorder window, or a
// raw event whose effect depends on per-surface state computed at apply
// time (PostToolUse/PermissionRequest pending-id tracking).
type queued struct {
	surfaceID  string
	sourceTime int64

	hook         *HookEvent
	transcript   *transcriptEvent
	statusLine   *StatusLineEvent
	clientWriteData string
}

type transcriptEvent struct {
	entryType string
	content   any
}

type surfaceState struct {
	pendingPermission map[string]bool
	lastPreToolUseID  string
	lastEventAt       int64 // ms, reset by any hook/transcript/status-line event
	currentState      node.AssistantState
}

// Engine reconciles events into assistant-state transitions and writes
// them through to the workspace store.
type Engine struct {
	store          *store.Store
	decisionLogDir string

	mu       sync.Mutex
	queue    []queued
	surfaces map[string]*surfaceState

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an Engine. decisionLogDir holds one JSON-lines file per
// surface (spec.md §4.2 "Decision log"); pass "" to disable it.
func New(s *store.Store, decisionLogDir string) *Engine {
	return &Engine{
		store:          s,
		decisionLogDir: decisionLogDir,
		surfaces:       make(map[string]*surfaceState),
		stopCh:         make(chan struct{}),
	}
}

// Run drives the drain and stale-sweep tickers until ctx is cancelled.
// On return the queue has been flushed regardless of age (spec.md §4.2:
// "On shutdown the queue is flushed regardless of age").
func (e *Engine) Run(ctx context.Context) error {
	drainTicker := time.NewTicker(DrainInterval)
	defer drainTicker.Stop()
	staleTicker := time.NewTicker(StaleSweepInterval)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain(true)
			return ctx.Err()
		case <-e.stopCh:
			e.drain(true)
			return nil
		case <-drainTicker.C:
			e.drain(false)
		case <-staleTicker.C:
			e.staleSweep()
		}
	}
}

// Close stops Run's loop (equivalent to cancelling ctx, for callers that
// want an explicit handle instead of threading a context.CancelFunc).
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) state(surfaceID string) *surfaceState {
	ss, ok := e.surfaces[surfaceID]
	if !ok {
		ss = &surfaceState{pendingPermission: make(map[string]bool)}
		e.surfaces[surfaceID] = ss
	}
	return ss
}

func nowMillis() int64 { return time.Now().UnixMilli() }
