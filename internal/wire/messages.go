package wire

import "github.com/chriswa/spaceterm/internal/snapshot"

// request is every field any spaceterm.sock request verb (spec.md §4.4)
// carries. A single flexible struct rather than one type per verb keeps
// the ~25-verb dispatch table in handlers.go readable; unknown/absent
// fields are simply zero-valued, matching the wire contract that unknown
// fields are ignored.
type request struct {
	Type string `json:"type"`

	// create / list / attach / detach / destroy / write / resize
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	CWD       string `json:"cwd,omitempty"`
	Command   string `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`

	// node-* mutators
	NodeID            string   `json:"nodeId,omitempty"`
	ParentID          string   `json:"parentId,omitempty"`
	NewParentID       string   `json:"newParentId,omitempty"`
	ArchivedID        string   `json:"archivedId,omitempty"`
	X                 int      `json:"x,omitempty"`
	Y                 int      `json:"y,omitempty"`
	HasPosition       bool     `json:"hasPosition,omitempty"`
	Name              string   `json:"name,omitempty"`
	ColorPresetID     string   `json:"colorPresetId,omitempty"`
	Moves             []moveReq `json:"moves,omitempty"`
	IDs               []string `json:"ids,omitempty"`
	PositionOverride  *nodePos `json:"positionOverride,omitempty"`

	// typed creators
	InsertAfterNodeID   string   `json:"insertAfterNodeId,omitempty"`
	InitialTitleHistory []string `json:"initialTitleHistory,omitempty"`
	Path                string   `json:"path,omitempty"`
	Content             string   `json:"content,omitempty"`
	Width               int      `json:"width,omitempty"`
	Height              int      `json:"height,omitempty"`
	MaxWidth            int      `json:"maxWidth,omitempty"`
	Text                string   `json:"text,omitempty"`

	// claude surface / fork / restart
	Unread          bool   `json:"unread,omitempty"`
	AgentSessionID  string `json:"agentSessionId,omitempty"`
	ExtraCliArgs    string `json:"extraCliArgs,omitempty"`
	HasExtraCliArgs bool   `json:"hasExtraCliArgs,omitempty"`
}

type moveReq struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type nodePos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// response is every field any response/event type (spec.md §4.4) carries.
type response struct {
	Type string `json:"type"`

	SessionID string `json:"sessionId,omitempty"`
	NodeID    string `json:"nodeId,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Data      string `json:"data,omitempty"`
	ExitCode  *int   `json:"exitCode,omitempty"`
	Scrollback string `json:"scrollback,omitempty"`

	Sessions []sessionInfo `json:"sessions,omitempty"`

	Node    any `json:"node,omitempty"`
	Partial any `json:"partial,omitempty"`
	State   any `json:"state,omitempty"`

	Message string `json:"message,omitempty"`

	CursorX  int             `json:"cursorX,omitempty"`
	CursorY  int             `json:"cursorY,omitempty"`
	RowCount int             `json:"rowCount,omitempty"`
	Rows     [][]snapshot.Run `json:"rows,omitempty"`

	PlanPath     string `json:"planPath,omitempty"`
	VersionCount int    `json:"versionCount,omitempty"`
}

type sessionInfo struct {
	ID       string `json:"id"`
	PID      int    `json:"pid"`
	Cols     int    `json:"cols"`
	Rows     int    `json:"rows"`
	Alive    bool   `json:"alive"`
	ExitCode *int   `json:"exitCode,omitempty"`
}

// hookRequest is every field a hooks.sock message (spec.md §4.4) carries.
type hookRequest struct {
	Type string `json:"type"`

	SurfaceID      string `json:"surfaceId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	AgentSessionID string `json:"agentSessionId,omitempty"`
	CWD            string `json:"cwd,omitempty"`
	HookName       string `json:"hookName,omitempty"`
	ToolName       string `json:"toolName,omitempty"`
	ToolUseID      string `json:"toolUseId,omitempty"`
	Source         string `json:"source,omitempty"`
	SourceTime     int64  `json:"sourceTime,omitempty"`

	Model               string `json:"model,omitempty"`
	ContextRemainingPct *int   `json:"contextRemainingPct,omitempty"`

	Markdown string `json:"markdown,omitempty"`

	PlanPath    string `json:"planPath,omitempty"`
	PlanContent string `json:"planContent,omitempty"`

	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Name    string   `json:"name,omitempty"`
}
