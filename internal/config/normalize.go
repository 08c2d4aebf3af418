package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSite()
	c.normalizeBrowser()
	c.normalizeOCR()
	c.normalizeProcessing()
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeSite() {
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Site.SearchURL = strings.TrimSpace(c.Site.SearchURL)
	c.Site.LabelText = strings.TrimSpace(c.Site.LabelText)
	c.Site.ArticleClass = strings.TrimSpace(c.Site.ArticleClass)
	c.Site.LabelClass = strings.TrimSpace(c.Site.LabelClass)
	c.Site.LinkAttribute = strings.TrimSpace(c.Site.LinkAttribute)
	c.Site.SourceAttribute = strings.TrimSpace(c.Site.SourceAttribute)
	if c.Site.SearchDateLayout == "" {
		c.Site.SearchDateLayout = defaultSearchDateLayout
	}
	if c.Site.LinkDateLayout == "" {
		c.Site.LinkDateLayout = defaultLinkDateLayout
	}
}

func (c *Config) normalizeBrowser() {
	c.Browser.Binary = strings.TrimSpace(c.Browser.Binary)
	flags := make([]string, 0, len(c.Browser.Flags))
	seen := make(map[string]struct{}, len(c.Browser.Flags))
	for _, flag := range c.Browser.Flags {
		normalized := strings.TrimLeft(strings.TrimSpace(flag), "-")
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		flags = append(flags, normalized)
	}
	c.Browser.Flags = flags
}

func (c *Config) normalizeOCR() {
	c.OCR.APIURL = strings.TrimSpace(c.OCR.APIURL)
	if c.OCR.APIURL == "" {
		c.OCR.APIURL = defaultOCRURL
	}
	c.OCR.APIKey = strings.TrimSpace(c.OCR.APIKey)
	c.OCR.Language = strings.ToLower(strings.TrimSpace(c.OCR.Language))
	if c.OCR.Language == "" {
		c.OCR.Language = "kor"
	}
	c.OCR.Engine = strings.TrimSpace(c.OCR.Engine)
	if c.OCR.Engine == "" {
		c.OCR.Engine = "1"
	}
	if c.OCR.Concurrency <= 0 {
		c.OCR.Concurrency = 1
	}
}

func (c *Config) normalizeProcessing() {
	c.Processing.FFmpeg = strings.TrimSpace(c.Processing.FFmpeg)
	if c.Processing.FFmpeg == "" {
		c.Processing.FFmpeg = "ffmpeg"
	}
	c.Processing.FFprobe = strings.TrimSpace(c.Processing.FFprobe)
	if c.Processing.FFprobe == "" {
		c.Processing.FFprobe = "ffprobe"
	}
	if c.Processing.AspectSamples <= 0 {
		c.Processing.AspectSamples = 5
	}
	if strings.TrimSpace(c.Timestamps.Marker) == "" {
		c.Timestamps.Marker = "시"
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	dir := strings.TrimSpace(c.Logging.Dir)
	if dir == "" {
		c.Logging.Dir = filepath.Join(c.Paths.StateDir, "logs")
		return nil
	}
	var err error
	if c.Logging.Dir, err = expandPath(dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
