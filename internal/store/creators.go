package store

import (
	"fmt"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/google/uuid"
)

func (s *Store) createNode(n node.Node) node.Node {
	s.mu.Lock()
	n.ID = uuid.NewString()
	n.ZIndex = s.nextZIndex()
	s.state.Nodes[n.ID] = n
	s.mu.Unlock()

	s.broadcastAdded(n)
	s.schedulePersist()
	return n
}

// CreateDirectory creates a directory node under parentID.
func (s *Store) CreateDirectory(parentID string, x, y int, cwd string) node.Node {
	return s.createNode(node.Node{
		Kind:      node.KindDirectory,
		ParentID:  parentID,
		X:         x,
		Y:         y,
		Directory: &node.Directory{CWD: cwd},
	})
}

// CreateFile creates a file node under parentID.
func (s *Store) CreateFile(parentID string, x, y int, path string) node.Node {
	return s.createNode(node.Node{
		Kind:     node.KindFile,
		ParentID: parentID,
		X:        x,
		Y:        y,
		File:     &node.File{Path: path},
	})
}

// CreateMarkdown creates a markdown node under parentID.
func (s *Store) CreateMarkdown(parentID string, x, y, width, height int, content string) node.Node {
	return s.createNode(node.Node{
		Kind:     node.KindMarkdown,
		ParentID: parentID,
		X:        x,
		Y:        y,
		Markdown: &node.Markdown{Width: width, Height: height, Content: content, MaxWidth: width},
	})
}

// CreateTitle creates a title node under parentID.
func (s *Store) CreateTitle(parentID string, x, y int, text string) node.Node {
	return s.createNode(node.Node{
		Kind:     node.KindTitle,
		ParentID: parentID,
		X:        x,
		Y:        y,
		Title:    &node.Title{Text: text},
	})
}

// SetDirectoryCWD updates a directory node's CWD field directly (the
// terminal path goes through UpdateCwd, which also handles terminals).
func (s *Store) SetDirectoryCWD(id, cwd string) error {
	return s.UpdateCwd(id, cwd)
}

// SetDirectoryGitStatus sets the ephemeral git-status block on a
// directory node. Never persisted (stripped by State.StripEphemeral).
func (s *Store) SetDirectoryGitStatus(id string, gs *node.GitStatus) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Directory == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no directory node %q", id)
	}
	d := *n.Directory
	d.GitStatus = gs
	n.Directory = &d
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"directory": map[string]any{"gitStatus": gs}})
	// Ephemeral: no persist scheduled.
	return nil
}

// SetFilePath replaces a file node's tracked path.
func (s *Store) SetFilePath(id, path string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.File == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no file node %q", id)
	}
	f := *n.File
	f.Path = path
	n.File = &f
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"file": map[string]any{"path": path}})
	s.schedulePersist()
	return nil
}

// SetMarkdownMaxWidth sets a markdown node's max-width constraint
// independent of its current width/height.
func (s *Store) SetMarkdownMaxWidth(id string, maxWidth int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Markdown == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no markdown node %q", id)
	}
	m := *n.Markdown
	m.MaxWidth = maxWidth
	n.Markdown = &m
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"markdown": map[string]any{"maxWidth": maxWidth}})
	s.schedulePersist()
	return nil
}

// SetMarkdownContent replaces a markdown node's content.
func (s *Store) SetMarkdownContent(id, content string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Markdown == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no markdown node %q", id)
	}
	m := *n.Markdown
	m.Content = content
	n.Markdown = &m
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"markdown": map[string]any{"content": content}})
	s.schedulePersist()
	return nil
}

// SetMarkdownSize resizes a markdown node.
func (s *Store) SetMarkdownSize(id string, width, height int) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Markdown == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no markdown node %q", id)
	}
	m := *n.Markdown
	m.Width, m.Height = width, height
	n.Markdown = &m
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"markdown": map[string]any{"width": width, "height": height}})
	s.schedulePersist()
	return nil
}

// SetTitleText replaces a title node's text.
func (s *Store) SetTitleText(id, text string) error {
	s.mu.Lock()
	n, ok := s.state.Nodes[id]
	if !ok || n.Title == nil {
		s.mu.Unlock()
		return fmt.Errorf("store: no title node %q", id)
	}
	t := *n.Title
	t.Text = text
	n.Title = &t
	s.state.Nodes[id] = n
	s.mu.Unlock()

	s.broadcastUpdated(id, map[string]any{"title": map[string]any{"text": text}})
	s.schedulePersist()
	return nil
}
