package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateTimestamps(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateProcessing checks the settings that only matter once a
// post-download stage is enabled. Call it after CLI flags are applied.
func (c *Config) ValidateProcessing() error {
	if !c.ProcessingEnabled() {
		return nil
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		return errors.New("paths.temp_dir must be set when processing is enabled (use --temp-dir)")
	}
	if c.Processing.Timestamps && c.OCR.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/kctvfetch/config.toml"
		}
		return fmt.Errorf("ocr.api_key is required for timestamp detection. Set KCTVFETCH_OCR_API_KEY or edit %s (create with 'kctvfetch config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateSite() error {
	if err := requireAbsoluteURL("site.base_url", c.Site.BaseURL); err != nil {
		return err
	}
	if !strings.Contains(c.Site.SearchURL, SearchDatePlaceholder) {
		return fmt.Errorf("site.search_url must contain the %s placeholder", SearchDatePlaceholder)
	}
	if err := requireAbsoluteURL("site.search_url", strings.ReplaceAll(c.Site.SearchURL, SearchDatePlaceholder, "01-01-2024")); err != nil {
		return err
	}
	for key, value := range map[string]string{
		"site.article_class":    c.Site.ArticleClass,
		"site.label_class":      c.Site.LabelClass,
		"site.label_text":       c.Site.LabelText,
		"site.link_attribute":   c.Site.LinkAttribute,
		"site.player_selector":  c.Site.PlayerSelector,
		"site.source_selector":  c.Site.SourceSelector,
		"site.source_attribute": c.Site.SourceAttribute,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Site.PlayerWaitSeconds <= 0 {
		return errors.New("site.player_wait_seconds must be positive")
	}
	if c.Browser.NavigationTimeoutSeconds <= 0 {
		return errors.New("browser.navigation_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	return ensurePositiveMap(map[string]int{
		"download.timeout_ms":  c.Download.TimeoutMS,
		"download.attempts":    c.Download.Attempts,
		"download.chunk_bytes": c.Download.ChunkBytes,
	})
}

func (c *Config) validateOCR() error {
	if err := requireAbsoluteURL("ocr.api_url", c.OCR.APIURL); err != nil {
		return err
	}
	if c.OCR.RequestsPerMinute < 0 {
		return errors.New("ocr.requests_per_minute must be zero (unlimited) or positive")
	}
	if c.OCR.TimeoutSeconds <= 0 {
		return errors.New("ocr.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTimestamps() error {
	ts := c.Timestamps
	for name, window := range map[string]Window{"timestamps.primary": ts.Primary, "timestamps.later": ts.Later} {
		if window.Start < 0 || window.End <= window.Start {
			return fmt.Errorf("%s must satisfy 0 <= start < end", name)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"timestamps.stride":      ts.Stride,
		"timestamps.crop.width":  ts.Crop.Width,
		"timestamps.crop.height": ts.Crop.Height,
	}); err != nil {
		return err
	}
	if ts.Crop.X < 0 || ts.Crop.Y < 0 {
		return errors.New("timestamps.crop offsets must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func requireAbsoluteURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
