package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/browser"
	"kctvfetch/internal/config"
	"kctvfetch/internal/download"
	"kctvfetch/internal/history"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/metrics"
	"kctvfetch/internal/pipeline"
	"kctvfetch/internal/preflight"
)

type fetchFlags struct {
	start           string
	end             string
	browserBinary   string
	timeoutMS       int
	replaceExisting bool
	keepFailed      bool
	tempDir         string
	aspect          bool
	forceAspect     bool
	timestamps      bool
	cleanTemp       bool
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <dir>",
		Short: "Download full broadcasts for a date range into dir",
		Long: `Download the full KCTV broadcast for every date from --start to --end
(inclusive) into dir. --start defaults to yesterday and --end to --start.

Post-processing (--aspect, --force-aspect, --timestamps) downloads into
--temp-dir first and delivers the processed file to dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dateRange, err := flags.apply(cmd, cfg, time.Now())
			if err != nil {
				return err
			}
			dest, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}
			return runFetch(cmd, ctx, cfg, dest, dateRange)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.start, "start", "", "First date to fetch (YYYY-MM-DD, default yesterday)")
	f.StringVar(&flags.end, "end", "", "Last date to fetch (YYYY-MM-DD, default --start)")
	f.StringVar(&flags.browserBinary, "browser-binary", "", "Chrome or Chromium executable")
	f.IntVar(&flags.timeoutMS, "timeout", 0, "Download connect/read timeout in milliseconds")
	f.BoolVar(&flags.replaceExisting, "replace-existing", false, "Re-download broadcasts already present in dir")
	f.BoolVar(&flags.keepFailed, "keep-failed", false, "Keep partial files from failed downloads")
	f.StringVar(&flags.tempDir, "temp-dir", "", "Working directory for post-processing")
	f.BoolVar(&flags.aspect, "aspect", false, "Crop letterboxed broadcasts to 16:9")
	f.BoolVar(&flags.forceAspect, "force-aspect", false, "Crop to 16:9 without letterbox detection")
	f.BoolVar(&flags.timestamps, "timestamps", false, "Detect on-screen clocks and add chapters")
	f.BoolVar(&flags.cleanTemp, "clean-temp", false, "Remove working files after delivery")
	return cmd
}

// apply folds explicitly set flags into cfg and returns the date range.
func (f fetchFlags) apply(cmd *cobra.Command, cfg *config.Config, now time.Time) (broadcast.Range, error) {
	changed := cmd.Flags().Changed
	if changed("browser-binary") {
		cfg.Browser.Binary = strings.TrimSpace(f.browserBinary)
	}
	if changed("timeout") {
		if f.timeoutMS <= 0 {
			return broadcast.Range{}, fmt.Errorf("--timeout must be positive")
		}
		cfg.Download.TimeoutMS = f.timeoutMS
	}
	if changed("replace-existing") {
		cfg.Download.ReplaceExisting = f.replaceExisting
	}
	if changed("keep-failed") {
		cfg.Download.KeepFailed = f.keepFailed
	}
	if changed("temp-dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(f.tempDir))
		if err != nil {
			return broadcast.Range{}, fmt.Errorf("resolve --temp-dir: %w", err)
		}
		cfg.Paths.TempDir = dir
	}
	if changed("aspect") {
		cfg.Processing.Aspect = f.aspect
	}
	if changed("force-aspect") {
		cfg.Processing.ForceAspect = f.forceAspect
	}
	if changed("timestamps") {
		cfg.Processing.Timestamps = f.timestamps
	}
	if changed("clean-temp") {
		cfg.Processing.CleanTemp = f.cleanTemp
	}
	if err := cfg.ValidateProcessing(); err != nil {
		return broadcast.Range{}, err
	}

	start := broadcast.Yesterday(now)
	if strings.TrimSpace(f.start) != "" {
		parsed, err := broadcast.ParseDate(f.start)
		if err != nil {
			return broadcast.Range{}, fmt.Errorf("--start: %w", err)
		}
		start = parsed
	}
	var end broadcast.Date
	if strings.TrimSpace(f.end) != "" {
		parsed, err := broadcast.ParseDate(f.end)
		if err != nil {
			return broadcast.Range{}, fmt.Errorf("--end: %w", err)
		}
		end = parsed
	}
	return broadcast.NewRange(start, end)
}

func runFetch(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, dest string, dateRange broadcast.Range) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	started := time.Now()
	runLog := logging.RunLogPath(cfg.Logging.Dir, started)
	logger, err := ctx.logger(runLog)
	if err != nil {
		return err
	}
	logging.CleanupOldLogs(logger, cfg.Logging.Dir, cfg.Logging.RetentionDays, runLog)

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := preflight.RunAll(runCtx, cfg, dest)
	for _, result := range preflight.Failed(results) {
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'kctvfetch check' for the full report"),
		)
	}
	if err := preflight.Err(results); err != nil {
		return err
	}

	stages, err := pipeline.BuildStages(cfg, logger)
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	progress := newProgressReporter(cmd.ErrOrStderr(), logger)
	orchestrator, err := pipeline.New(pipeline.Deps{
		Config: cfg,
		Open: func(openCtx context.Context) (browser.Navigator, func() error, error) {
			session, err := browser.Open(openCtx, ctx.browserOptions(logger))
			if err != nil {
				return nil, nil, err
			}
			return session, session.Close, nil
		},
		Downloader: download.New(download.Options{
			Attempts:   cfg.Download.Attempts,
			ChunkBytes: cfg.Download.ChunkBytes,
			Logger:     logger,
		}),
		Stages:   stages,
		History:  store,
		Metrics:  metrics.New(),
		Progress: progress.forDate,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	summary, runErr := orchestrator.Run(runCtx, pipeline.Plan{Destination: dest, Range: dateRange})
	progress.finish()
	if len(summary.Results) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	}
	return runErr
}
