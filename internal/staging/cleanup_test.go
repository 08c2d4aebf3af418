package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kctvfetch/internal/logging"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCleanWorkingRemovesFileAndSnapshots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dl-2024-05-01.mp4")
	mustWrite(t, file, "video")
	mustWrite(t, filepath.Join(dir, "dl-2024-05-01.mp4_images_300-720", "image_0001.jpg"), "jpg")
	mustWrite(t, filepath.Join(dir, "dl-2024-05-01.mp4_images_900-2400", "image_0001.jpg"), "jpg")
	other := filepath.Join(dir, "dl-2024-05-02.mp4_images_300-720", "image_0001.jpg")
	mustWrite(t, other, "jpg")

	result := CleanWorking(dir, file, logging.NewNop())

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 3 {
		t.Fatalf("expected 3 removed, got %d: %v", len(result.Removed), result.Removed)
	}
	if result.Bytes != int64(len("video")+2*len("jpg")) {
		t.Errorf("unexpected reclaimed bytes %d", result.Bytes)
	}
	if exists(file) {
		t.Error("download should be removed")
	}
	if !exists(other) {
		t.Error("snapshots of another date must survive")
	}
}

func TestCleanWorkingMissingPaths(t *testing.T) {
	dir := t.TempDir()
	result := CleanWorking(dir, filepath.Join(dir, "dl-2024-05-01.mp4"), logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result := CleanWorking(dir, "  ", nil); len(result.Removed) != 0 {
		t.Fatal("blank file should be a no-op")
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldWorkingFiles(t *testing.T) {
	dir := t.TempDir()
	oldTime := time.Now().Add(-2 * time.Hour)

	oldFile := filepath.Join(dir, "dl-2024-05-01.mp4")
	oldSnaps := filepath.Join(dir, "dl-2024-05-01.mp4_images_300-720")
	recentFile := filepath.Join(dir, "dl-2024-05-02.mp4")
	unrelated := filepath.Join(dir, "notes.txt")
	unrelatedDir := filepath.Join(dir, "keep")

	mustWrite(t, oldFile, "old")
	mustWrite(t, filepath.Join(oldSnaps, "image_0001.jpg"), "jpg")
	mustWrite(t, recentFile, "new")
	mustWrite(t, unrelated, "txt")
	if err := os.Mkdir(unrelatedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{oldFile, oldSnaps, unrelated, unrelatedDir} {
		if err := os.Chtimes(path, oldTime, oldTime); err != nil {
			t.Fatalf("set old time: %v", err)
		}
	}

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())

	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %d: %v", len(result.Removed), result.Removed)
	}
	if exists(oldFile) || exists(oldSnaps) {
		t.Error("stale working files should be removed")
	}
	for _, path := range []string{recentFile, unrelated, unrelatedDir} {
		if !exists(path) {
			t.Errorf("%s should still exist", path)
		}
	}
}

func TestGlobEscape(t *testing.T) {
	if got := globEscape("a[1]*?.mp4"); got != `a\[1]\*\?.mp4` {
		t.Fatalf("globEscape = %q", got)
	}
}
