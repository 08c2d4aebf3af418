package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kctvfetch/internal/config"
	"kctvfetch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the browser, ffmpeg, OCR service and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dest := strings.TrimSpace(destination)
			if dest != "" {
				if dest, err = config.ExpandPath(dest); err != nil {
					return fmt.Errorf("resolve --dest: %w", err)
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, dest)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			fmt.Fprintf(out, "Processing enabled: %s\n", yesNo(cfg.ProcessingEnabled()))
			return preflight.Err(results)
		},
	}
	cmd.Flags().StringVar(&destination, "dest", "", "Delivery directory to check")
	return cmd
}
