package executor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareMountPointDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	dst := filepath.Join(dir, "dst", "nested")
	if err := prepareMountPoint(src, dst); err != nil {
		t.Fatalf("prepareMountPoint: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected dst to exist as a directory: %v", err)
	}
}

func TestPrepareMountPointFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dst := filepath.Join(dir, "nested", "dst.txt")
	if err := prepareMountPoint(src, dst); err != nil {
		t.Fatalf("prepareMountPoint: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil || info.IsDir() {
		t.Fatalf("expected dst to exist as a file: %v", err)
	}
}

func TestPrepareMountPointMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := prepareMountPoint(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatalf("expected error for missing source")
	}
}
