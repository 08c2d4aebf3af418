package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kctvfetch/internal/logging"
)

// snapshotMarker joins a source file name and its capture window in snapshot
// directory names.
const snapshotMarker = "_images_"

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Bytes   int64
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanWorking removes file and every snapshot directory derived from it
// inside workDir. Missing paths are not errors.
func CleanWorking(workDir, file string, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	workDir = strings.TrimSpace(workDir)
	file = strings.TrimSpace(file)
	if file == "" {
		return result
	}

	targets := []string{file}
	if workDir != "" {
		matches, err := filepath.Glob(filepath.Join(workDir, globEscape(filepath.Base(file))+snapshotMarker+"*"))
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
		}
		targets = append(targets, matches...)
	}

	for _, path := range targets {
		remove(path, &result, logger, "working file")
	}
	if logger != nil && len(result.Removed) > 0 {
		logger.Info("working files removed",
			logging.Int("count", len(result.Removed)),
			logging.Bytes("reclaimed", result.Bytes),
			logging.String(logging.FieldEventType, "temp_cleanup"),
		)
	}
	return result
}

// CleanStale removes leftover downloads and snapshot directories in workDir
// older than maxAge. Entries that are not broadcast working files are kept.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return result
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !isWorkingEntry(entry) {
			continue
		}
		path := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if info.ModTime().Before(cutoff) {
			remove(path, &result, logger, "stale working file")
		}
	}

	return result
}

func isWorkingEntry(entry os.DirEntry) bool {
	name := entry.Name()
	if entry.IsDir() {
		return strings.Contains(name, snapshotMarker)
	}
	return strings.HasPrefix(name, "dl-") && strings.HasSuffix(name, ".mp4")
}

func remove(path string, result *CleanResult, logger *slog.Logger, label string) {
	size, _ := pathSize(path)
	if err := os.RemoveAll(path); err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		if logger != nil {
			logger.Warn("failed to remove "+label,
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "temp_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
		return
	}
	if size < 0 {
		return
	}
	result.Removed = append(result.Removed, path)
	result.Bytes += size
	if logger != nil {
		logger.Debug("removed "+label, logging.String("path", path))
	}
}

// pathSize returns the total size of path, or -1 when it does not exist.
func pathSize(path string) (int64, error) {
	if _, err := os.Lstat(path); err != nil {
		return -1, err
	}
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// globEscape quotes glob metacharacters in a literal file name.
func globEscape(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
