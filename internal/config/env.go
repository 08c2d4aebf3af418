package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "KCTVFETCH_"

type envOverrides struct {
	OCRAPIKey     string `env:"OCR_API_KEY"`
	BrowserBinary string `env:"BROWSER_BINARY"`
	TempDir       string `env:"TEMP_DIR"`
	StateDir      string `env:"STATE_DIR"`
	LogLevel      string `env:"LOG_LEVEL"`
	LogFormat     string `env:"LOG_FORMAT"`
}

// applyEnv overlays non-empty environment values on top of file values.
func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	setIfPresent(&c.OCR.APIKey, overrides.OCRAPIKey)
	setIfPresent(&c.Browser.Binary, overrides.BrowserBinary)
	setIfPresent(&c.Paths.TempDir, overrides.TempDir)
	setIfPresent(&c.Paths.StateDir, overrides.StateDir)
	setIfPresent(&c.Logging.Level, overrides.LogLevel)
	setIfPresent(&c.Logging.Format, overrides.LogFormat)
	return nil
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
