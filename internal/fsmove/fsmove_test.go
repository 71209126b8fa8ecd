package fsmove

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveRenamesDirectory(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "old")
	to := filepath.Join(dir, "new", "nested")
	if err := os.MkdirAll(from, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(from, "file.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := Move(from, to); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(from); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, got err=%v", err)
	}
	data, err := os.ReadFile(filepath.Join(to, "file.txt"))
	if err != nil {
		t.Fatalf("read moved file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestMoveCopiesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "repo")
	if err := os.MkdirAll(filepath.Join(from, "objects", "pack"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(from, "objects", "pack", "pack.idx"), []byte("data"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	to := filepath.Join(dir, "archived", "repo")
	if err := Move(from, to); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(filepath.Join(to, "objects", "pack", "pack.idx")); err != nil {
		t.Fatalf("expected nested file at destination: %v", err)
	}
}
