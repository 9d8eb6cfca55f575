package wire

import (
	"encoding/json"
	"net"
	"sync"
)

// clientConn is one connected spaceterm.sock client: a single-writer
// net.Conn guarded by a mutex (grounded on the teacher's ws.Client.mu /
// writeJSON), plus the per-session attached and snapshot-mode sets that
// spec.md §4.4's fan-out rules key off of.
type clientConn struct {
	conn net.Conn

	writeMu sync.Mutex

	setsMu       sync.RWMutex
	attached     map[string]bool
	snapshotMode map[string]bool
}

func newClientConn(conn net.Conn) *clientConn {
	return &clientConn{
		conn:         conn,
		attached:     make(map[string]bool),
		snapshotMode: make(map[string]bool),
	}
}

// writeJSON marshals v and writes it as one newline-terminated JSON
// line. Failures are swallowed: writes to client sockets are best-effort
// per spec.md §5, never allowed to block or fail one client's delivery
// because of another's.
func (c *clientConn) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.Write(data)
}

func (c *clientConn) attach(sessionID string) {
	c.setsMu.Lock()
	c.attached[sessionID] = true
	c.setsMu.Unlock()
}

func (c *clientConn) detach(sessionID string) {
	c.setsMu.Lock()
	delete(c.attached, sessionID)
	delete(c.snapshotMode, sessionID)
	c.setsMu.Unlock()
}

func (c *clientConn) isAttached(sessionID string) bool {
	c.setsMu.RLock()
	defer c.setsMu.RUnlock()
	return c.attached[sessionID]
}

func (c *clientConn) enterSnapshotMode(sessionID string) {
	c.setsMu.Lock()
	c.snapshotMode[sessionID] = true
	c.setsMu.Unlock()
}

func (c *clientConn) isSnapshotMode(sessionID string) bool {
	c.setsMu.RLock()
	defer c.setsMu.RUnlock()
	return c.snapshotMode[sessionID]
}

// hub tracks every connected client and implements spec.md §4.4's three
// fan-out rules: data goes only to a session's attached set, node-*/
// claude-usage go to everyone, snapshot goes only to a session's
// snapshot-mode set.
type hub struct {
	mu    sync.Mutex
	conns map[*clientConn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[*clientConn]bool)}
}

func (h *hub) register(c *clientConn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *clientConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *hub) snapshot() []*clientConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*clientConn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// broadcastAll sends v to every connected client (node-added, node-
// updated, node-removed, claude-usage).
func (h *hub) broadcastAll(v any) {
	for _, c := range h.snapshot() {
		c.writeJSON(v)
	}
}

// sendToAttached sends v only to clients that have attached to
// sessionID (data, exit).
func (h *hub) sendToAttached(sessionID string, v any) {
	for _, c := range h.snapshot() {
		if c.isAttached(sessionID) {
			c.writeJSON(v)
		}
	}
}

// sendToSnapshotMode sends v only to clients in snapshot mode for
// sessionID (snapshot).
func (h *hub) sendToSnapshotMode(sessionID string, v any) {
	for _, c := range h.snapshot() {
		if c.isSnapshotMode(sessionID) {
			c.writeJSON(v)
		}
	}
}
