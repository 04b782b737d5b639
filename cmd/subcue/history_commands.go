package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"subcue/internal/api"
	"subcue/internal/runaccess"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent synchronization runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				runs, err := access.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				headers := []string{"ID", "Status", "Started", "Duration", "Files", "Synced", "Skipped", "Failed"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildHistoryRows(runs), aligns))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var withLog bool
	var logTail int

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its per-file results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := strings.TrimSpace(args[0])
			if runID == "" {
				return fmt.Errorf("run id is required")
			}
			return ctx.withAccess(func(access runaccess.Access) error {
				run, files, err := access.Show(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Run   api.Run          `json:"run"`
						Files []api.FileResult `json:"files,omitempty"`
					}{Run: run, Files: files})
				}

				out := cmd.OutOrStdout()
				printRunSummary(out, run)
				if len(files) == 0 {
					fmt.Fprintln(out, "No file results recorded")
				} else {
					headers := []string{"File", "Language", "Status", "Engines", "Note"}
					aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
					fmt.Fprintln(out, renderTable(headers, buildRunFileRows(files), aligns))
				}
				if !withLog {
					return nil
				}
				lines, err := access.RunLog(cmd.Context(), runID, logTail)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				if len(lines) == 0 {
					fmt.Fprintln(out, "No run log recorded")
					return nil
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVar(&withLog, "log", false, "Print the run log after the file results")
	cmd.Flags().IntVar(&logTail, "log-lines", 40, "Run log lines to print with --log (0 for all)")
	return cmd
}

func printRunSummary(out io.Writer, run api.Run) {
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Status:   %s\n", formatStatusLabel(run.Status))
	fmt.Fprintf(out, "  Started:  %s\n", formatDisplayTime(run.StartTime))
	if run.EndTime != "" {
		fmt.Fprintf(out, "  Finished: %s (%s)\n", formatDisplayTime(run.EndTime), formatRunDuration(run.DurationSeconds))
	}
	fmt.Fprintf(out, "  Files:    %d total, %d synced, %d skipped, %d failed\n",
		run.TotalFiles, run.CompletedFiles, run.SkippedFiles, run.FailedFiles)
	fmt.Fprintf(out, "  Engines:  %d/%d invocations finished\n", run.CompletedEngines, run.TotalEngines)
}
