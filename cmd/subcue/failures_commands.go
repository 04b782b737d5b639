package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"subcue/internal/ipc"
	"subcue/internal/runaccess"
	"subcue/internal/runstore"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and reset engine failure records",
	}

	failuresCmd.AddCommand(newFailuresListCommand(ctx))
	failuresCmd.AddCommand(newFailuresResetCommand(ctx))

	return failuresCmd
}

func newFailuresListCommand(ctx *commandContext) *cobra.Command {
	var onlySkipped bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List per-file engine failure records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				failures, err := access.Failures(cmd.Context(), onlySkipped)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, failures)
				}
				if len(failures) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failure records")
					return nil
				}
				headers := []string{"File", "Engine", "Failures", "Last Failure", "Skipped"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildFailureRows(failures), aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&onlySkipped, "skipped", false, "Show only records that crossed the skip threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newFailuresResetCommand(ctx *commandContext) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "reset <file>",
		Short: "Clear failure counts so skipped engines run again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := strings.TrimSpace(args[0])
			if file == "" {
				return fmt.Errorf("file path is required")
			}
			cleared, err := resetFailures(cmd, ctx, file, strings.TrimSpace(engine))
			if err != nil {
				return err
			}
			if cleared == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No failure records matched %s\n", file)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s for %s\n",
				english.Plural(int(cleared), "failure record", ""), file)
			return nil
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", "Reset only this engine's record")
	return cmd
}

// resetFailures goes through the daemon when it is reachable and writes
// to the store directly otherwise. Direct writes are safe here: the
// tracker tables are only touched by runs, and a daemonless system has
// no run in flight.
func resetFailures(cmd *cobra.Command, ctx *commandContext, file, engine string) (int64, error) {
	var cleared int64
	err := ctx.withStore(func(client *ipc.Client, store *runstore.Store) error {
		if client != nil {
			resp, err := client.FailuresReset(file, engine)
			if err != nil {
				return err
			}
			cleared = resp.Cleared
			return nil
		}
		n, err := store.ResetSkip(cmd.Context(), file, engine)
		if err != nil {
			return err
		}
		cleared = n
		return nil
	})
	return cleared, err
}
