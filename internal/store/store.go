// Package store is the workspace state store: the single source of
// truth for the node graph, archival, undo buffer, and alerts (spec.md
// §4.3). Persistence is a debounced atomic JSON write (temp file,
// fsync, rename), grounded on the teacher's internal/store open/migrate
// idiom but adapted to a single document rather than a relational
// schema, and on its timer-reset debounce idiom in internal/egg/audit.go
// (see DESIGN.md for why no SQL store backs this concern).
package store

import (
	"sync"
	"time"

	"github.com/chriswa/spaceterm/internal/node"
)

// Callbacks broadcasts every mutation to attached wire clients. Every
// exported write on Store invokes the relevant one after applying the
// change. Broadcasts fire synchronously under no lock; callbacks must
// not call back into Store (spec.md §5: "safe to enqueue without
// waiting").
type Callbacks struct {
	NodeUpdated func(id string, partial map[string]any)
	NodeAdded   func(n node.Node)
	NodeRemoved func(id string)
}

// PersistDebounce is the trailing debounce window before a mutation hits
// disk (spec.md §4.3: "Every mutation calls a debounced persist (1000 ms
// trailing)").
const PersistDebounce = 1000 * time.Millisecond

// Store owns the in-memory state document plus the debounced persist
// timer. All mutating methods take the lock; persistence runs off a
// separate timer so callers never block on disk I/O.
type Store struct {
	mu    sync.RWMutex
	state *node.State

	path string
	cb   Callbacks

	persistMu    sync.Mutex
	persistTimer *time.Timer
}

// New constructs a Store around an already-loaded state document (see
// Load). Any nil field in cb is simply not invoked.
func New(path string, state *node.State, cb Callbacks) *Store {
	return &Store{path: path, state: state, cb: cb}
}

// GetState returns a deep copy of the whole state, safe to serialize for
// a sync-state reply without racing a concurrent mutation (spec.md §5
// guarantee 3).
func (s *Store) GetState() *node.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// GetNode returns a copy of the node at id, if it exists.
func (s *Store) GetNode(id string) (node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.Nodes[id]
	if !ok {
		return node.Node{}, false
	}
	return n.Clone(), true
}

// GetNodeIdForSession returns the node id whose terminal payload's
// SessionID equals ptyID, if any live node is currently mapped to it.
func (s *Store) GetNodeIdForSession(ptyID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, n := range s.state.Nodes {
		if n.Kind == node.KindTerminal && n.Terminal != nil && n.Terminal.Alive && n.Terminal.SessionID == ptyID {
			return id, true
		}
	}
	return "", false
}

// IsReviving reports whether the node at id currently carries the
// transient "reviving" recovery marker.
func (s *Store) IsReviving(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.Nodes[id]
	return ok && n.Terminal != nil && n.Terminal.Reviving
}

// nextZIndex must be called with s.mu held for writing.
func (s *Store) nextZIndex() int {
	z := s.state.NextZIndex
	s.state.NextZIndex++
	return z
}

func (s *Store) broadcastAdded(n node.Node) {
	if s.cb.NodeAdded != nil {
		s.cb.NodeAdded(n.Clone())
	}
}

func (s *Store) broadcastUpdated(id string, partial map[string]any) {
	if s.cb.NodeUpdated != nil {
		s.cb.NodeUpdated(id, partial)
	}
}

func (s *Store) broadcastRemoved(id string) {
	if s.cb.NodeRemoved != nil {
		s.cb.NodeRemoved(id)
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }
