package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subcue/internal/api"
	"subcue/internal/ipc"
	"subcue/internal/runstore"
)

const runPollInterval = 500 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a synchronization run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				resp, err := client.RunStart()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing run start response")
				}
				run := resp.Run
				fmt.Fprintf(stdout, "Run %s started: %d files, %d engine invocations planned\n",
					run.ID, run.TotalFiles, run.TotalEngines)
				if !wait {
					return nil
				}

				final, err := waitForRun(cmd, client, run.ID)
				if err != nil {
					return err
				}
				if final == nil {
					return nil
				}
				fmt.Fprintf(stdout, "Run %s %s: %d synced, %d skipped, %d failed (%.1fs)\n",
					final.ID, final.Status,
					final.CompletedFiles, final.SkippedFiles, final.FailedFiles,
					final.DurationSeconds)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the run finishes and print a summary")
	return cmd
}

// waitForRun polls the daemon until the run reaches a terminal status.
// A cancelled command context returns nil without error.
func waitForRun(cmd *cobra.Command, client *ipc.Client, runID string) (*api.Run, error) {
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil, nil
		case <-ticker.C:
		}

		resp, err := client.RunShow(runID)
		if err != nil {
			return nil, fmt.Errorf("poll run %s: %w", runID, err)
		}
		if resp == nil {
			continue
		}
		if runstore.RunStatus(resp.Run.Status).Terminal() {
			run := resp.Run
			return &run, nil
		}
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active synchronization run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunStop()
				if err != nil {
					return err
				}
				if resp != nil && resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Run stop requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No run in progress")
				}
				return nil
			})
		},
	}
}

func newSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <path>",
		Short: "Skip one file in the active run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if path == "" {
				return errors.New("file path is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SkipFile(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Skip requested for %s\n", path)
				return nil
			})
		},
	}
}
