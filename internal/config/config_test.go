package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kctvfetch/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
	assert.False(t, exists)

	assert.Equal(t, filepath.Join(tempHome, ".local", "state", "kctvfetch"), cfg.Paths.StateDir)
	assert.Equal(t, filepath.Join(cfg.Paths.StateDir, "logs"), cfg.Logging.Dir)
	assert.Equal(t, filepath.Join(cfg.Paths.StateDir, "history.db"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join(cfg.Paths.StateDir, "kctvfetch.lock"), cfg.LockPath())
	assert.Empty(t, cfg.Paths.TempDir)
	assert.Equal(t, 60000, cfg.Download.TimeoutMS)
	assert.Equal(t, 3, cfg.Download.Attempts)
	assert.Equal(t, 8192, cfg.Download.ChunkBytes)
	assert.Equal(t, "kor", cfg.OCR.Language)
	assert.Equal(t, config.Crop{Width: 250, Height: 110, X: 30, Y: 75}, cfg.Timestamps.Crop)
	assert.Equal(t, config.Window{Start: 300, End: 720}, cfg.Timestamps.Primary)
	assert.Equal(t, config.Window{Start: 900, End: 2400}, cfg.Timestamps.Later)
	assert.False(t, cfg.ProcessingEnabled())
}

func TestLoadCustomFileAndEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KCTVFETCH_OCR_API_KEY", "env-key")
	t.Setenv("KCTVFETCH_LOG_LEVEL", "DEBUG")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
temp_dir = "` + filepath.Join(dir, "tmp") + `"
state_dir = "` + filepath.Join(dir, "state") + `"

[ocr]
api_key = "file-key"
concurrency = 4

[browser]
flags = ["--disable-gpu", "disable-gpu", " no-sandbox "]

[processing]
timestamps = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, "env-key", cfg.OCR.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.OCR.Concurrency)
	assert.Equal(t, []string{"disable-gpu", "no-sandbox"}, cfg.Browser.Flags)
	assert.Equal(t, filepath.Join(dir, "tmp"), cfg.Paths.TempDir)
	assert.True(t, cfg.ProcessingEnabled())
	require.NoError(t, cfg.ValidateProcessing())
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"search url placeholder", func(c *config.Config) { c.Site.SearchURL = "https://example.com/?d=x" }, "placeholder"},
		{"relative base url", func(c *config.Config) { c.Site.BaseURL = "/archive" }, "site.base_url"},
		{"zero attempts", func(c *config.Config) { c.Download.Attempts = 0 }, "download.attempts"},
		{"inverted window", func(c *config.Config) { c.Timestamps.Later = config.Window{Start: 10, End: 5} }, "timestamps.later"},
		{"zero stride", func(c *config.Config) { c.Timestamps.Stride = 0 }, "timestamps.stride"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative pacing", func(c *config.Config) { c.OCR.RequestsPerMinute = -1 }, "requests_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProcessingRequiresTempDirAndKey(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.ValidateProcessing())

	cfg.Processing.Aspect = true
	err := cfg.ValidateProcessing()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp_dir")

	cfg.Paths.TempDir = t.TempDir()
	require.NoError(t, cfg.ValidateProcessing())

	cfg.Processing.Timestamps = true
	err = cfg.ValidateProcessing()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr.api_key")
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var decoded config.Config
	require.NoError(t, toml.Unmarshal([]byte(config.SampleConfig()), &decoded))

	defaults := config.Default()
	assert.Equal(t, defaults.Site, decoded.Site)
	assert.Equal(t, defaults.Download, decoded.Download)
	assert.Equal(t, defaults.Timestamps, decoded.Timestamps)
	assert.Equal(t, defaults.OCR, decoded.OCR)
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[timestamps.crop]"))
}

func TestEncodeRedactsAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.APIKey = "secret"
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.OCR.APIKey)
}
