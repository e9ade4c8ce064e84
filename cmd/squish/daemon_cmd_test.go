package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindDaemonProcessReadsLockfile(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "squishd.sock")
	lockPath := socketPath + ".lock"
	if err := os.WriteFile(lockPath, []byte("1234"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	proc, err := findDaemonProcess(socketPath)
	if err != nil {
		t.Fatalf("findDaemonProcess: %v", err)
	}
	if proc.Pid != 1234 {
		t.Fatalf("Pid = %d, want 1234", proc.Pid)
	}
}

func TestFindDaemonProcessMissingLockfile(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "squishd.sock")
	if _, err := findDaemonProcess(socketPath); err == nil {
		t.Fatalf("expected error for missing lockfile")
	}
}
