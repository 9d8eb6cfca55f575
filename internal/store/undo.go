package store

import "github.com/chriswa/spaceterm/internal/node"

// PushUndoEntry appends entry to the undo buffer, evicting the oldest
// entry first once the buffer is at UndoBufferCap (spec.md §4.3).
func (s *Store) PushUndoEntry(entry node.UndoEntry) {
	s.mu.Lock()
	s.state.UndoBuffer = append(s.state.UndoBuffer, entry)
	if len(s.state.UndoBuffer) > node.UndoBufferCap {
		s.state.UndoBuffer = s.state.UndoBuffer[len(s.state.UndoBuffer)-node.UndoBufferCap:]
	}
	s.mu.Unlock()

	s.schedulePersist()
}

// PopUndoEntry removes and returns the most recently pushed undo entry.
func (s *Store) PopUndoEntry() (node.UndoEntry, bool) {
	s.mu.Lock()
	if len(s.state.UndoBuffer) == 0 {
		s.mu.Unlock()
		return node.UndoEntry{}, false
	}
	last := s.state.UndoBuffer[len(s.state.UndoBuffer)-1]
	s.state.UndoBuffer = s.state.UndoBuffer[:len(s.state.UndoBuffer)-1]
	s.mu.Unlock()

	s.schedulePersist()
	return last, true
}
