package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kctvfetch/internal/config"
	"kctvfetch/internal/pipeline"
	"kctvfetch/internal/refine"
)

func newTimestampsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "timestamps <file>",
		Short: "Detect on-screen clock times in a downloaded broadcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			file, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve file: %w", err)
			}
			if info, err := os.Stat(file); err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			} else if info.IsDir() {
				return fmt.Errorf("%s is a directory", file)
			}
			if strings.TrimSpace(cfg.OCR.APIKey) == "" {
				return fmt.Errorf("ocr.api_key is required; set %sOCR_API_KEY or edit the config file", config.EnvPrefix)
			}

			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			detector, err := pipeline.NewDetector(cfg, logger)
			if err != nil {
				return err
			}

			if cfg.Paths.TempDir != "" {
				if err := os.MkdirAll(cfg.Paths.TempDir, 0o755); err != nil {
					return fmt.Errorf("create temp dir: %w", err)
				}
			}
			workDir, err := os.MkdirTemp(cfg.Paths.TempDir, "kctvfetch-timestamps-")
			if err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}
			defer os.RemoveAll(workDir)

			detection, err := detector.Detect(cmd.Context(), file, workDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !detection.Found {
				fmt.Fprintf(out, "No clock times found in %s\n", filepath.Base(file))
				return nil
			}

			chapters := refine.BuildChapters(detection.Set.Offsets(), 0, cfg.Timestamps.EpochCorrectionSeconds)
			rows := make([][]string, 0, len(chapters))
			for _, ch := range chapters {
				rows = append(rows, []string{
					(time.Duration(ch.Start) * time.Second).String(),
					ch.Title,
				})
			}
			fmt.Fprintf(out, "Phase: %s\n", detection.Phase)
			fmt.Fprintln(out, renderTable([]string{"Offset", "Clock"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}
}
