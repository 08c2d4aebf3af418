package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/browser"
	"kctvfetch/internal/resolver"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the media URL of a date's full broadcast without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			date := broadcast.Yesterday(time.Now())
			if strings.TrimSpace(dateFlag) != "" {
				if date, err = broadcast.ParseDate(dateFlag); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}

			session, err := browser.Open(cmd.Context(), ctx.browserOptions(logger))
			if err != nil {
				return err
			}
			defer session.Close()

			res := resolver.New(session, cfg.Site, resolver.Options{Nudge: cfg.Browser.Nudge}, logger)
			location, err := res.Resolve(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Broadcast date (YYYY-MM-DD, default yesterday)")
	return cmd
}
