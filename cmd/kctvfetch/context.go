package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kctvfetch/internal/browser"
	"kctvfetch/internal/config"
	"kctvfetch/internal/deps"
	"kctvfetch/internal/logging"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevel); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if format := flagValue(c.logFormat); format != "" {
			format = strings.ToLower(format)
			if format != "console" && format != "json" {
				c.configErr = fmt.Errorf("--log-format: unsupported value %q", format)
				return
			}
			cfg.Logging.Format = format
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger builds a logger for a command. runLog mirrors output to a file when set.
func (c *commandContext) logger(runLog string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg, runLog)
}

func (c *commandContext) browserOptions(logger *slog.Logger) browser.Options {
	cfg := c.config
	binary := cfg.Browser.Binary
	if resolved := deps.ResolveBrowser(binary); resolved != "" {
		binary = resolved
	}
	return browser.Options{
		Binary:            binary,
		Headless:          cfg.Browser.Headless,
		Flags:             cfg.Browser.Flags,
		NavigationTimeout: cfg.NavigationTimeout(),
		Logger:            logger,
	}
}

func flagValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
