package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/logging"
)

func makeRunDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if age > 0 {
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(dir, stamp, stamp); err != nil {
			t.Fatalf("set time on %s: %v", name, err)
		}
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldRunDirectories(t *testing.T) {
	root := t.TempDir()
	oldDir := makeRunDir(t, root, "run-old", 2*time.Hour)
	recentDir := makeRunDir(t, root, "run-recent", 0)

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
}

func TestCleanStaleKeepsNamedDirectories(t *testing.T) {
	root := t.TempDir()
	active := makeRunDir(t, root, "run-active", 3*time.Hour)
	stale := makeRunDir(t, root, "run-stale", 3*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop(), "run-active")
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatal("kept directory was removed")
	}
}

func TestCleanStaleDisabledByZeroRetention(t *testing.T) {
	root := t.TempDir()
	dir := makeRunDir(t, root, "run-old", 48*time.Hour)
	result := CleanStale(context.Background(), root, 0, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatal("directory should remain when retention is disabled")
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	oldFile := filepath.Join(root, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	dir1 := makeRunDir(t, root, "run-1", 0)
	makeRunDir(t, root, "run-2", 0)
	if err := os.WriteFile(filepath.Join(root, "not-a-dir.txt"), []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "chunk_000.mp4"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("create inner file: %v", err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d", len(dirs))
	}
	var found bool
	for _, d := range dirs {
		if d.Name == "run-1" {
			found = true
			if d.Size != 5 {
				t.Errorf("run-1 size = %d, want 5", d.Size)
			}
			if d.Path != dir1 || d.ModTime.IsZero() {
				t.Errorf("unexpected info %+v", d)
			}
		}
	}
	if !found {
		t.Error("did not find run-1 in results")
	}
}
