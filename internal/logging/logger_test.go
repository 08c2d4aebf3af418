package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kctvfetch/internal/config"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/services"
)

func TestNewFromConfigMirrorsRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	runLog := filepath.Join(t.TempDir(), "logs", "kctvfetch-20240501-010203.log")

	logger, err := logging.NewFromConfig(&cfg, runLog)
	require.NoError(t, err)
	logger.Debug("debug message", logging.String("key", "value"))

	content, err := os.ReadFile(runLog)
	require.NoError(t, err)
	assert.Contains(t, string(content), "debug message")
	assert.Contains(t, string(content), "key=value")
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), ".go:")
	assert.Contains(t, string(content), "INFO message without caller")
}

func TestConsoleLoggerPrefixesDateAndComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	ctx := services.WithDate(context.Background(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	component := logging.NewComponentLogger(logger, "download")
	logging.WithContext(ctx, component).Info("download complete", logging.Int64("bytes", 42))

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line := strings.TrimSpace(string(content))
	assert.Contains(t, line, "[2024-05-01] download: download complete")
	assert.Contains(t, line, "bytes=42")
	assert.NotContains(t, line, "component=")
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "resolve")
	logging.WithContext(ctx, logger).Info("resolved")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(content), &payload))
	assert.Equal(t, "info", payload["level"])
	assert.Equal(t, "run-1", payload[logging.FieldRunID])
	assert.Equal(t, "resolve", payload[logging.FieldStage])
	assert.Contains(t, payload, "ts")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logging.WarnWithContext(logger, "broadcast missing", "broadcast_not_found",
		logging.String(logging.FieldImpact, "date skipped"))

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line := string(content)
	assert.Contains(t, line, "event_type=broadcast_not_found")
	assert.Contains(t, line, `error_hint="see the run log for details"`)
	assert.Contains(t, line, `impact="date skipped"`)
}

func TestBytesAttr(t *testing.T) {
	assert.Equal(t, "1.5 GiB", logging.Bytes("size", 3<<29).Value.String())
	assert.Equal(t, "unknown", logging.Bytes("size", -1).Value.String())
}

func TestCleanupOldLogsKeepsCurrentAndRecent(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "kctvfetch-20200101-000000.log")
	current := filepath.Join(dir, "kctvfetch-20200102-000000.log")
	recent := filepath.Join(dir, "kctvfetch-20240501-000000.log")
	other := filepath.Join(dir, "history.db")
	for _, path := range []string{old, current, recent, other} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	stale := time.Now().AddDate(0, 0, -40)
	for _, path := range []string{old, current, other} {
		require.NoError(t, os.Chtimes(path, stale, stale))
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), dir, 30, current)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, current)
	assert.FileExists(t, recent)
	assert.FileExists(t, other)
}

func TestRunLogPath(t *testing.T) {
	started := time.Date(2024, 5, 1, 13, 4, 5, 0, time.Local)
	assert.Equal(t, filepath.Join("logs", "kctvfetch-20240501-130405.log"), logging.RunLogPath("logs", started))
}
