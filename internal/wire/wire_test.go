package wire

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	if fileExists(path) {
		t.Fatal("should not exist yet")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !fileExists(path) {
		t.Fatal("should exist now")
	}
}

func TestProbeAndClearNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaceterm.sock")
	if err := probeAndClear(path); err != nil {
		t.Fatalf("expected no error for a missing socket, got %v", err)
	}
}

func TestProbeAndClearStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaceterm.sock")
	if err := os.WriteFile(path, []byte("not a socket"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := probeAndClear(path); err != nil {
		t.Fatalf("expected stale file to be cleared without error, got %v", err)
	}
	if fileExists(path) {
		t.Fatal("stale file should have been removed")
	}
}

func TestProbeAndClearLiveSocketRefusesToSteal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaceterm.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if err := probeAndClear(path); err == nil {
		t.Fatal("expected an error when the socket is live")
	}
	if !fileExists(path) {
		t.Fatal("a live socket's file must not be removed")
	}
}

func TestServerErrorResponse(t *testing.T) {
	r := serverError("boom")
	if r.Type != "server-error" || r.Message != "boom" {
		t.Fatalf("unexpected response: %+v", r)
	}
}

func TestServeUnknownMessageType(t *testing.T) {
	s := &Server{hub: newHub()}
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	c := newClientConn(server)

	go s.handleRequest(c, request{Type: "not-a-real-verb"})

	got := readLine(t, client)
	if got["type"] != "server-error" {
		t.Fatalf("expected server-error, got %v", got)
	}
}
