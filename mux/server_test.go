package mux

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/queer/squish/registry"
)

func startTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(dir, nil)

	s := &Server{
		SocketPath: filepath.Join(dir, "squish.sock"),
		LockPath:   filepath.Join(dir, "squish.lock"),
		Registry:   reg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		if err := s.ServeUnix(ctx); err != nil {
			t.Logf("ServeUnix: %v", err)
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := os.Stat(s.SocketPath); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	return s, NewClient(s.SocketPath)
}

func TestServerStatus(t *testing.T) {
	s, c := startTestServer(t)
	defer s.Shutdown(context.Background())

	if err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
}

func TestServerListEmpty(t *testing.T) {
	s, c := startTestServer(t)
	defer s.Shutdown(context.Background())

	entries, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want none", entries)
	}
}

func TestServerListReflectsRegistry(t *testing.T) {
	s, c := startTestServer(t)
	defer s.Shutdown(context.Background())

	if err := s.Registry.Add(registry.Container{ID: "abc123", Name: "calm-otter", PID: 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc123" || entries[0].Name != "calm-otter" {
		t.Fatalf("entries = %+v, want one matching abc123/calm-otter", entries)
	}
}

func TestServerStopFuzzyMatch(t *testing.T) {
	s, c := startTestServer(t)
	defer s.Shutdown(context.Background())

	if err := s.Registry.Add(registry.Container{ID: "abc123", Name: "calm-otter", PID: 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Registry.Add(registry.Container{ID: "xyz999", Name: "brave-fox", PID: 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	removed, err := c.Stop(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(removed) != 1 || removed[0] != "abc123" {
		t.Fatalf("removed = %v, want [abc123]", removed)
	}

	entries, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "xyz999" {
		t.Fatalf("entries = %+v, want only xyz999 left", entries)
	}
}

func TestServerStopNoMatch(t *testing.T) {
	s, c := startTestServer(t)
	defer s.Shutdown(context.Background())

	removed, err := c.Stop(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("removed = %v, want none", removed)
	}
}

func TestClientStatusWhenDaemonNotRunning(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(filepath.Join(dir, "nonexistent.sock"))
	if err := c.Status(context.Background()); err == nil {
		t.Fatalf("expected Status to fail when daemon is not running")
	}
}
