// Package wire runs the two Unix-socket servers spec.md §4.4/§6 describes:
// spaceterm.sock (bidirectional, one client connection per UI window) and
// hooks.sock (ingest-only, one short-lived connection per Claude Code hook
// invocation). Both carry JSON-lines: one UTF-8 JSON object per line,
// newline-terminated, unknown fields ignored.
//
// The envelope-type dispatch and per-connection routing here is adapted
// from the teacher's internal/ws/client.go (Envelope{Type}-routed
// messages, a ptySessions map keyed by session id, a mutex-guarded
// writeJSON) — that package rides over a WebSocket relay rather than a
// raw Unix socket, but the routing shape carries over directly.
package wire

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/chriswa/spaceterm/internal/assistant"
	"github.com/chriswa/spaceterm/internal/config"
	"github.com/chriswa/spaceterm/internal/fork"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/plancache"
	"github.com/chriswa/spaceterm/internal/session"
	"github.com/chriswa/spaceterm/internal/snapshot"
	"github.com/chriswa/spaceterm/internal/store"
	"github.com/chriswa/spaceterm/internal/transcript"
)

// watchdogInterval is how often the watchdog confirms both socket files
// still exist on disk (spec.md §5: "5s socket-watchdog tick").
const watchdogInterval = 5 * time.Second

// Server wires the two socket listeners to the rest of the daemon. The
// zero value is unusable; construct with New and finish wiring with
// Attach before calling ListenAndServe.
type Server struct {
	paths config.Paths

	store       *store.Store
	sessions    *session.Manager
	assistantEng *assistant.Engine
	snapshots   *snapshot.Manager
	transcripts *transcript.Watcher
	plans       *plancache.Store
	forker      *fork.Forker

	hub *hub

	mirrorsMu sync.Mutex
	mirrors   map[string]*snapshot.Mirror

	restartsMu sync.Mutex
	restarts   map[string]restartAttempt

	primaryLn net.Listener
	hooksLn   net.Listener

	closeOnce sync.Once
	done      chan struct{}
}

// New returns a Server with its connection hub ready but no components
// attached yet. Components are supplied via Attach once they exist, since
// some of them (session.Manager, store.Store) need callbacks that close
// over the Server itself.
func New(paths config.Paths) *Server {
	return &Server{
		paths:    paths,
		hub:      newHub(),
		mirrors:  make(map[string]*snapshot.Mirror),
		restarts: make(map[string]restartAttempt),
		done:     make(chan struct{}),
	}
}

// Attach finishes wiring the server to the rest of the daemon's
// components. Must be called once, before ListenAndServe.
func (s *Server) Attach(st *store.Store, sessions *session.Manager, assistantEng *assistant.Engine, snapshots *snapshot.Manager, transcripts *transcript.Watcher, plans *plancache.Store, forker *fork.Forker) {
	s.store = st
	s.sessions = sessions
	s.assistantEng = assistantEng
	s.snapshots = snapshots
	s.transcripts = transcripts
	s.plans = plans
	s.forker = forker
}

// ListenAndServe probes and binds both sockets, then accepts connections
// until ctx is cancelled or the watchdog observes a socket file vanish.
// It never returns nil on a clean shutdown triggered by ctx; callers
// should treat context.Canceled as expected.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := probeAndClear(s.paths.PrimarySocket); err != nil {
		return err
	}
	os.Remove(s.paths.HooksSocket) // hooks.sock is unconditionally unlinked if stale

	primaryLn, err := net.Listen("unix", s.paths.PrimarySocket)
	if err != nil {
		return fmt.Errorf("wire: listen %s: %w", s.paths.PrimarySocket, err)
	}
	hooksLn, err := net.Listen("unix", s.paths.HooksSocket)
	if err != nil {
		primaryLn.Close()
		return fmt.Errorf("wire: listen %s: %w", s.paths.HooksSocket, err)
	}
	s.primaryLn = primaryLn
	s.hooksLn = hooksLn

	go s.acceptPrimary()
	go s.acceptHooks()
	go s.watchdog(ctx)

	<-ctx.Done()
	s.shutdown()
	return ctx.Err()
}

// shutdown closes both listeners and unlinks both socket files. Safe to
// call more than once.
func (s *Server) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.primaryLn != nil {
			s.primaryLn.Close()
		}
		if s.hooksLn != nil {
			s.hooksLn.Close()
		}
		os.Remove(s.paths.PrimarySocket)
		os.Remove(s.paths.HooksSocket)
	})
}

// watchdog shuts the server down cleanly if either socket file is
// removed out from under it (spec.md §5).
func (s *Server) watchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if !fileExists(s.paths.PrimarySocket) || !fileExists(s.paths.HooksSocket) {
				logger.Log.Warn("wire: socket file vanished, shutting down")
				s.shutdown()
				return
			}
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// probeAndClear implements spec.md §4.4's stale-socket handling for
// spaceterm.sock: if the file exists, dial it; a successful dial means
// another process is live and owns it, so we exit with an error rather
// than stealing the path out from under it. A failed dial means the
// file is stale and safe to unlink.
func probeAndClear(path string) error {
	if !fileExists(path) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("wire: %s is live (another instance is running)", path)
	}
	return os.Remove(path)
}

func (s *Server) acceptPrimary() {
	for {
		conn, err := s.primaryLn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Log.Warn("wire: primary accept failed", "err", err)
			return
		}
		go s.servePrimary(conn)
	}
}

func (s *Server) acceptHooks() {
	for {
		conn, err := s.hooksLn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Log.Warn("wire: hooks accept failed", "err", err)
			return
		}
		go s.serveHooks(conn)
	}
}

// servePrimary owns one client connection's lifetime: one long-lived
// reader loop dispatching each line to handleRequest, until the client
// disconnects or the line scanner errors.
func (s *Server) servePrimary(conn net.Conn) {
	c := newClientConn(conn)
	s.hub.register(c)
	defer func() {
		s.hub.unregister(c)
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			c.writeJSON(serverError("malformed JSON"))
			continue
		}
		s.handleRequest(c, req)
	}
}

// serveHooks owns one hooks.sock connection: short-lived, write-only
// from the client's perspective, fire-and-forget (no responses are sent,
// malformed or unknown messages are silently ignored per spec.md §4.4).
func (s *Server) serveHooks(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req hookRequest
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		raw := append([]byte(nil), line...) // scanner reuses its buffer across Scan calls
		s.handleHookMessage(req, raw)
	}
}

func serverError(message string) response {
	return response{Type: "server-error", Message: message}
}
