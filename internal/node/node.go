// Package node defines the workspace graph's tagged-variant node types.
//
// A Node is the shared base every spatial object carries (id, parent,
// position, z-order, name, alerts, color, archived children); the per-type
// payload (Terminal, Directory, File, Markdown, Title) hangs off the Kind
// tag. This mirrors the teacher's arena-and-handle style for cross-
// referenced records: nodes reference each other by id, never by pointer,
// so the whole graph can be serialized and reloaded without fixing up
// cycles.
package node

// RootID is the sentinel parent id for root-level nodes.
const RootID = "root"

// Kind tags which payload a Node carries.
type Kind string

const (
	KindTerminal  Kind = "terminal"
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
	KindMarkdown  Kind = "markdown"
	KindTitle     Kind = "title"
)

// AssistantState is the discrete lifecycle state shown for a terminal
// hosting the coding agent. See internal/assistant for the state machine
// that computes transitions between these values.
type AssistantState string

const (
	StateStopped          AssistantState = "stopped"
	StateWorking          AssistantState = "working"
	StateWaitingPermission AssistantState = "waiting_permission"
	StateWaitingQuestion  AssistantState = "waiting_question"
	StateWaitingPlan      AssistantState = "waiting_plan"
	StateStuck            AssistantState = "stuck"
)

// AgentSessionReason classifies why a new agent session started.
type AgentSessionReason string

const (
	ReasonStartup AgentSessionReason = "startup"
	ReasonResume  AgentSessionReason = "resume"
	ReasonFork    AgentSessionReason = "fork"
	ReasonClear   AgentSessionReason = "clear"
	ReasonCompact AgentSessionReason = "compact"
)

// TerminalSessionTrigger classifies why a terminal-session entry began.
type TerminalSessionTrigger string

const (
	TriggerInitial            TerminalSessionTrigger = "initial"
	TriggerReincarnation      TerminalSessionTrigger = "reincarnation"
	TriggerAgentSessionChange TerminalSessionTrigger = "agent-session-change"
)

// Alert is a user-facing notice attached to a node (currently only
// cwd-mismatch alerts are produced, by internal/store).
type Alert struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	ReadAt    int64  `json:"readAt,omitempty"`
}

// AgentSessionEntry records one agent session's attachment to a surface.
type AgentSessionEntry struct {
	AgentSessionID string             `json:"agentSessionId"`
	Reason         AgentSessionReason `json:"reason"`
	Timestamp      int64              `json:"timestamp"`
}

// TerminalSessionEntry records one PTY incarnation's lifetime on a surface.
type TerminalSessionEntry struct {
	StartedAt        int64                  `json:"startedAt"`
	EndedAt          int64                  `json:"endedAt,omitempty"`
	Trigger          TerminalSessionTrigger `json:"trigger"`
	AgentSessionID   string                 `json:"agentSessionId,omitempty"`
	ShellTitleHistory []string              `json:"shellTitleHistory,omitempty"`
}

// Node is the full record for one workspace object: the shared base plus
// exactly one non-nil typed payload selected by Kind.
type Node struct {
	ID             string  `json:"id"`
	Kind           Kind    `json:"kind"`
	ParentID       string  `json:"parentId"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	ZIndex         int     `json:"zIndex"`
	Name           string  `json:"name,omitempty"`
	ColorPresetID  string  `json:"colorPresetId,omitempty"`
	Alerts         []Alert `json:"alerts,omitempty"`
	ArchivedChildren []ArchivedChild `json:"archivedChildren,omitempty"`
	LastFocusedAt  int64   `json:"lastFocusedAt,omitempty"`

	Terminal *Terminal `json:"terminal,omitempty"`
	Directory *Directory `json:"directory,omitempty"`
	File      *File      `json:"file,omitempty"`
	Markdown  *Markdown  `json:"markdown,omitempty"`
	Title     *Title     `json:"title,omitempty"`
}

// ArchivedChild is an immutable snapshot of a formerly-live subtree, stored
// inside the former parent's ArchivedChildren list (or the server state's
// RootArchivedChildren for root-level archives).
type ArchivedChild struct {
	Node       Node  `json:"node"`
	ArchivedAt int64 `json:"archivedAt"`
}

// Terminal is the payload for KindTerminal nodes.
type Terminal struct {
	Alive               bool                    `json:"alive"`
	SessionID           string                  `json:"sessionId,omitempty"`
	Cols                int                     `json:"cols"`
	Rows                int                     `json:"rows"`
	CWD                 string                  `json:"cwd,omitempty"`
	SortKey             int64                   `json:"sortKey"`
	TerminalSessions     []TerminalSessionEntry  `json:"terminalSessions"`
	AgentSessionHistory   []AgentSessionEntry     `json:"agentSessionHistory,omitempty"`
	ShellTitleHistory     []string                `json:"shellTitleHistory,omitempty"`
	AssistantState        AssistantState          `json:"assistantState,omitempty"`
	Unread                bool                    `json:"unread,omitempty"`
	DecisionTime          int64                   `json:"decisionTime,omitempty"`
	ExitCode              *int                    `json:"exitCode,omitempty"`
	Model                 string                  `json:"model,omitempty"`
	ContextRemainingPct   *int                    `json:"contextRemainingPct,omitempty"`
	ExtraCliArgs          string                  `json:"extraCliArgs,omitempty"`

	// Reviving/Restarting are transient recovery markers; never persisted
	// (stripped before serialization, like directory GitStatus).
	Reviving    bool `json:"-"`
	Restarting  bool `json:"-"`
}

// Directory is the payload for KindDirectory nodes.
type Directory struct {
	CWD       string     `json:"cwd"`
	GitStatus *GitStatus `json:"gitStatus,omitempty"` // ephemeral, never persisted
}

// GitStatus is ephemeral per-directory VCS info, recomputed on demand and
// never written to state.json.
type GitStatus struct {
	Branch         string `json:"branch,omitempty"`
	Upstream       string `json:"upstream,omitempty"`
	Ahead          int    `json:"ahead"`
	Behind         int    `json:"behind"`
	Conflicted     int    `json:"conflicted"`
	Staged         int    `json:"staged"`
	Unstaged       int    `json:"unstaged"`
	Untracked      int    `json:"untracked"`
	FetchHeadMtime int64  `json:"fetchHeadMtime,omitempty"`
}

// File is the payload for KindFile nodes.
type File struct {
	Path string `json:"path"`
}

// Markdown is the payload for KindMarkdown nodes.
type Markdown struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Content    string `json:"content"`
	MaxWidth   int    `json:"maxWidth"`
	FileBacked bool   `json:"fileBacked,omitempty"`
}

// Title is the payload for KindTitle nodes.
type Title struct {
	Text string `json:"text"`
}

// Clone returns a deep copy of n, safe to store in an archive or hand to a
// broadcast goroutine without aliasing the live node's slices.
func (n Node) Clone() Node {
	out := n
	if n.Alerts != nil {
		out.Alerts = append([]Alert(nil), n.Alerts...)
	}
	if n.ArchivedChildren != nil {
		out.ArchivedChildren = make([]ArchivedChild, len(n.ArchivedChildren))
		for i, c := range n.ArchivedChildren {
			out.ArchivedChildren[i] = ArchivedChild{Node: c.Node.Clone(), ArchivedAt: c.ArchivedAt}
		}
	}
	if n.Terminal != nil {
		t := *n.Terminal
		t.TerminalSessions = append([]TerminalSessionEntry(nil), n.Terminal.TerminalSessions...)
		t.AgentSessionHistory = append([]AgentSessionEntry(nil), n.Terminal.AgentSessionHistory...)
		t.ShellTitleHistory = append([]string(nil), n.Terminal.ShellTitleHistory...)
		if n.Terminal.ExitCode != nil {
			ec := *n.Terminal.ExitCode
			t.ExitCode = &ec
		}
		if n.Terminal.ContextRemainingPct != nil {
			p := *n.Terminal.ContextRemainingPct
			t.ContextRemainingPct = &p
		}
		out.Terminal = &t
	}
	if n.Directory != nil {
		d := *n.Directory
		d.GitStatus = nil // ephemeral, never carried across clone boundaries that feed persistence
		out.Directory = &d
	}
	if n.File != nil {
		f := *n.File
		out.File = &f
	}
	if n.Markdown != nil {
		m := *n.Markdown
		out.Markdown = &m
	}
	if n.Title != nil {
		t := *n.Title
		out.Title = &t
	}
	return out
}

// IsDisposable reports whether the node may be silently deleted instead of
// archived, per spec.md §3's disposability rule.
func (n Node) IsDisposable() bool {
	if len(n.ArchivedChildren) > 0 {
		return false
	}
	switch n.Kind {
	case KindTerminal:
		if n.Terminal == nil {
			return true
		}
		hasResumableAgent := len(n.Terminal.AgentSessionHistory) > 0
		hasNontrivialTitles := len(n.Terminal.ShellTitleHistory) > 0
		return !hasResumableAgent && !hasNontrivialTitles
	case KindMarkdown:
		return n.Markdown == nil || n.Markdown.Content == ""
	case KindTitle:
		return n.Title == nil || n.Title.Text == ""
	case KindDirectory, KindFile:
		return false
	default:
		return false
	}
}
