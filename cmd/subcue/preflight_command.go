package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subcue/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the environment before starting the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			failed := 0
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Engines", colorize) {
				fmt.Fprintln(out, line)
			}
			engines := preflight.Engines(cfg)
			if len(engines) == 0 {
				fmt.Fprintln(out, renderStatusLine("Engines", statusError, "No engines configured", colorize))
				failed++
			}
			for _, engine := range engines {
				switch {
				case !engine.Enabled:
					fmt.Fprintln(out, renderStatusLine(engine.Name, statusInfo, "Disabled", colorize))
				case engine.Available:
					fmt.Fprintln(out, renderStatusLine(engine.Name, statusOK, engine.Detail, colorize))
				default:
					fmt.Fprintln(out, renderStatusLine(engine.Name, statusError, engine.Detail, colorize))
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("preflight found %d problem(s)", failed)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "All preflight checks passed")
			return nil
		},
	}
}
