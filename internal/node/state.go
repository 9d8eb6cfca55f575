package node

// UndoBufferCap is the maximum number of undo entries retained (FIFO
// eviction beyond this), per spec.md §3/§4.3.
const UndoBufferCap = 100

// SchemaVersion is the current on-disk state.json schema version.
const SchemaVersion = 1

// UndoEntry is an opaque, caller-defined record pushed onto the undo
// buffer. The store does not interpret its contents; it only enforces the
// FIFO cap.
type UndoEntry struct {
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// State is the full persisted server state: schema version, z-order
// counter, the live node map, root-level archived children, and the undo
// buffer. This is exactly the document serialized to state.json.
type State struct {
	Version             int                 `json:"version"`
	NextZIndex          int                 `json:"nextZIndex"`
	Nodes               map[string]Node     `json:"nodes"`
	RootArchivedChildren []ArchivedChild    `json:"rootArchivedChildren"`
	UndoBuffer          []UndoEntry         `json:"undoBuffer"`
}

// NewState returns an empty, schema-current state.
func NewState() *State {
	return &State{
		Version:    SchemaVersion,
		NextZIndex: 1,
		Nodes:      make(map[string]Node),
	}
}

// Clone returns a deep copy of the whole state, suitable for a sync-state
// response snapshot (spec.md §5 guarantee 3: a sync-state reply must not
// interleave with live updates).
func (s *State) Clone() *State {
	out := &State{
		Version:    s.Version,
		NextZIndex: s.NextZIndex,
		Nodes:      make(map[string]Node, len(s.Nodes)),
	}
	for id, n := range s.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for _, c := range s.RootArchivedChildren {
		out.RootArchivedChildren = append(out.RootArchivedChildren, ArchivedChild{Node: c.Node.Clone(), ArchivedAt: c.ArchivedAt})
	}
	for _, u := range s.UndoBuffer {
		entry := u
		if u.Payload != nil {
			entry.Payload = make(map[string]any, len(u.Payload))
			for k, v := range u.Payload {
				entry.Payload[k] = v
			}
		}
		out.UndoBuffer = append(out.UndoBuffer, entry)
	}
	return out
}

// StripEphemeral removes fields that must never reach disk (directory
// git-status blocks, and the in-memory-only terminal recovery markers),
// matching spec.md §4.3/§6 ("Ephemeral fields ... are stripped before
// serialization").
func (s *State) StripEphemeral() {
	for id, n := range s.Nodes {
		changed := false
		if n.Directory != nil && n.Directory.GitStatus != nil {
			d := *n.Directory
			d.GitStatus = nil
			n.Directory = &d
			changed = true
		}
		if n.Terminal != nil && (n.Terminal.Reviving || n.Terminal.Restarting) {
			t := *n.Terminal
			t.Reviving = false
			t.Restarting = false
			n.Terminal = &t
			changed = true
		}
		if changed {
			s.Nodes[id] = n
		}
	}
}
