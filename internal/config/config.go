package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working and state directory configuration.
type Paths struct {
	TempDir  string `toml:"temp_dir"`
	StateDir string `toml:"state_dir"`
}

// Site holds the selectors and layouts used to walk the archive site. It is
// copied by value into the resolver and never mutated after load.
type Site struct {
	BaseURL           string `toml:"base_url"`
	SearchURL         string `toml:"search_url"`
	SearchDateLayout  string `toml:"search_date_layout"`
	ArticleClass      string `toml:"article_class"`
	LabelClass        string `toml:"label_class"`
	LabelText         string `toml:"label_text"`
	LinkDateLayout    string `toml:"link_date_layout"`
	LinkAttribute     string `toml:"link_attribute"`
	PlayerSelector    string `toml:"player_selector"`
	SourceSelector    string `toml:"source_selector"`
	SourceAttribute   string `toml:"source_attribute"`
	PlayerWaitSeconds int    `toml:"player_wait_seconds"`
}

// Browser contains headless browser settings for page navigation.
type Browser struct {
	Binary                   string   `toml:"binary"`
	Headless                 bool     `toml:"headless"`
	Flags                    []string `toml:"flags"`
	Nudge                    bool     `toml:"nudge"`
	NavigationTimeoutSeconds int      `toml:"navigation_timeout_seconds"`
}

// Download contains transfer and retry settings.
type Download struct {
	TimeoutMS       int  `toml:"timeout_ms"`
	Attempts        int  `toml:"attempts"`
	ChunkBytes      int  `toml:"chunk_bytes"`
	ReplaceExisting bool `toml:"replace_existing"`
	KeepFailed      bool `toml:"keep_failed"`
}

// OCR contains configuration for the text recognition web service.
type OCR struct {
	APIURL            string `toml:"api_url"`
	APIKey            string `toml:"api_key"`
	Language          string `toml:"language"`
	Engine            string `toml:"engine"`
	Concurrency       int    `toml:"concurrency"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Window is a capture window in seconds from the start of the broadcast.
type Window struct {
	Start int `toml:"start"`
	End   int `toml:"end"`
}

// Crop is an ffmpeg crop rectangle (width, height, x, y).
type Crop struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	X      int `toml:"x"`
	Y      int `toml:"y"`
}

// Timestamps contains the on-screen clock detection settings.
type Timestamps struct {
	Primary                Window `toml:"primary"`
	Later                  Window `toml:"later"`
	Stride                 int    `toml:"stride"`
	Crop                   Crop   `toml:"crop"`
	Marker                 string `toml:"marker"`
	EpochCorrectionSeconds int    `toml:"epoch_correction_seconds"`
}

// Processing contains post-download stage toggles and tool names.
type Processing struct {
	Aspect        bool   `toml:"aspect"`
	ForceAspect   bool   `toml:"force_aspect"`
	Timestamps    bool   `toml:"timestamps"`
	CleanTemp     bool   `toml:"clean_temp"`
	AspectSamples int    `toml:"aspect_samples"`
	FFmpeg        string `toml:"ffmpeg"`
	FFprobe       string `toml:"ffprobe"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains the Prometheus textfile export location.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Config encapsulates all configuration values for kctvfetch.
//
// Configuration sections by subsystem:
//   - Paths: temp working directory and state directory
//   - Site: archive selectors and date layouts
//   - Browser: headless browser binary and flags
//   - Download: timeout, retries, overwrite and keep-failed policies
//   - OCR: recognition service endpoint, key and pacing
//   - Timestamps: capture windows, stride, crop box and epoch correction
//   - Processing: post-download stages and ffmpeg/ffprobe binaries
//   - Logging: log format, level, directory and retention
//   - Metrics: Prometheus textfile output
type Config struct {
	Paths      Paths      `toml:"paths"`
	Site       Site       `toml:"site"`
	Browser    Browser    `toml:"browser"`
	Download   Download   `toml:"download"`
	OCR        OCR        `toml:"ocr"`
	Timestamps Timestamps `toml:"timestamps"`
	Processing Processing `toml:"processing"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/kctvfetch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kctvfetch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "kctvfetch.lock")
}

// HistoryPath returns the sqlite history ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// DownloadTimeout returns the connect/read timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutMS) * time.Millisecond
}

// NavigationTimeout bounds a single page load.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeoutSeconds) * time.Second
}

// ProcessingEnabled reports whether any post-download stage is switched on.
func (c *Config) ProcessingEnabled() bool {
	return c.Processing.Aspect || c.Processing.ForceAspect || c.Processing.Timestamps
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.OCR.APIKey != "" {
		redacted.OCR.APIKey = "********"
	}
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
