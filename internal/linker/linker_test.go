//go:build unix

package linker

import (
	"os"
	"path/filepath"
	"testing"
)

func createFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSymlinkRelative(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "kept.txt")
	location := filepath.Join(dir, "gone.txt.lnk")
	createFile(t, target, "data")

	if err := (Symlink{}).Link(target, location); err != nil {
		t.Fatal(err)
	}

	got, err := os.Readlink(location)
	if err != nil {
		t.Fatal(err)
	}
	if got != "kept.txt" {
		t.Errorf("link points to %q, want relative %q", got, "kept.txt")
	}

	// The link must resolve back to the target's content.
	data, err := os.ReadFile(location)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "data" {
		t.Errorf("link resolves to %q, want %q", data, "data")
	}
}

func TestSymlinkAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "kept.txt")
	location := filepath.Join(sub, "gone.txt.lnk")
	createFile(t, target, "data")

	if err := (Symlink{}).Link(target, location); err != nil {
		t.Fatal(err)
	}

	got, err := os.Readlink(location)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("..", "kept.txt")
	if got != want {
		t.Errorf("link points to %q, want %q", got, want)
	}
}

func TestSymlinkMissingTarget(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "gone.txt.lnk")

	err := (Symlink{}).Link(filepath.Join(dir, "absent.txt"), location)
	if err == nil {
		t.Fatal("expected error for missing target")
	}
	if _, statErr := os.Lstat(location); !os.IsNotExist(statErr) {
		t.Error("no artifact should exist after a refused link")
	}
}

func TestSymlinkReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "kept.txt")
	location := filepath.Join(dir, "gone.txt.lnk")
	createFile(t, target, "data")
	createFile(t, location, "stale")

	if err := (Symlink{}).Link(target, location); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Readlink(location); err != nil {
		t.Errorf("existing artifact not replaced by a link: %v", err)
	}
}
