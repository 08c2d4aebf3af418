package preflight

import (
	"context"

	"kctvfetch/internal/config"
	"kctvfetch/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// destination is the delivery directory; an empty value skips that check.
func RunAll(ctx context.Context, cfg *config.Config, destination string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if destination != "" {
		results = append(results, CheckDirectoryAccess("Destination directory", destination))
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.ProcessingEnabled() {
		if cfg.Paths.TempDir == "" {
			results = append(results, Result{Name: "Temp directory", Detail: "required when post-processing is enabled"})
		} else {
			results = append(results, CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir))
		}
	}

	results = append(results, fromStatus(deps.CheckBrowser(cfg.Browser.Binary)))
	for _, status := range CheckSystemDeps(cfg) {
		if !status.Available && status.Optional {
			continue
		}
		results = append(results, fromStatus(status))
	}

	if cfg.Processing.Timestamps {
		results = append(results, CheckOCR(ctx, cfg.OCR.APIURL, cfg.OCR.APIKey))
	}

	return results
}

// CheckSystemDeps evaluates the media tools for the given config. They are
// optional unless a post-processing stage is enabled.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	optional := !cfg.ProcessingEnabled()
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Processing.FFmpeg,
			Description: "Required for frame sampling, aspect correction and chapters",
			Optional:    optional,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Processing.FFprobe,
			Description: "Required for media inspection",
			Optional:    optional,
		},
	})
}

func fromStatus(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Path}
	}
	return Result{Name: status.Name, Detail: status.Detail}
}
