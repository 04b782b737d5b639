package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"subcue/internal/api"
	"subcue/internal/ipc"
	"subcue/internal/runstore"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show run store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *runstore.Store) error {
				var health api.StoreHealth
				if client != nil {
					resp, err := client.StoreHealth()
					if err != nil {
						return err
					}
					health = resp.Health
				} else {
					probed, err := store.CheckHealth(cmd.Context())
					if err != nil {
						return err
					}
					health = api.FromHealth(probed)
				}
				if asJSON {
					return writeJSON(cmd, health)
				}
				printStoreHealth(cmd.OutOrStdout(), health)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func printStoreHealth(out io.Writer, health api.StoreHealth) {
	fmt.Fprintf(out, "Database:  %s\n", health.Path)
	fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(health.SizeBytes)))
	fmt.Fprintf(out, "Runs:      %d\n", health.TotalRuns)
	fmt.Fprintf(out, "Files:     %d\n", health.TotalFiles)
	fmt.Fprintf(out, "Integrity: %s\n", okBad(health.IntegrityOK))
	fmt.Fprintf(out, "Schema:    %s\n", okBad(health.SchemaOK))
	if len(health.MissingColumns) > 0 {
		fmt.Fprintf(out, "Missing:   %s\n", strings.Join(health.MissingColumns, ", "))
	}
	if health.CheckedAt != "" {
		fmt.Fprintf(out, "Checked:   %s\n", formatDisplayTime(health.CheckedAt))
	}
	if health.Summary != "" {
		fmt.Fprintf(out, "Summary:   %s\n", health.Summary)
	}
}

func okBad(value bool) string {
	if value {
		return "ok"
	}
	return "FAILED"
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var vacuum bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply the retention policy to stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *runstore.Store) error {
				var outcome api.SweepOutcome
				if client != nil {
					resp, err := client.Sweep()
					if err != nil {
						return err
					}
					outcome = resp.Outcome
				} else {
					result, err := store.Sweep(cmd.Context(), runstore.SweepPolicy{
						KeepDays:    cfg.Retention.KeepDays,
						TrimDays:    cfg.Retention.TrimDays,
						MaxLogBytes: cfg.Retention.MaxLogBytes,
					})
					if err != nil {
						return err
					}
					outcome = api.FromSweepResult(result)
				}

				var sizeBefore, sizeAfter int64
				if vacuum {
					if client != nil {
						resp, err := client.Vacuum()
						if err != nil {
							return err
						}
						sizeBefore, sizeAfter = resp.SizeBefore, resp.SizeAfter
					} else {
						if sizeBefore, err = store.Size(cmd.Context()); err != nil {
							return err
						}
						if err := store.Vacuum(cmd.Context()); err != nil {
							return err
						}
						if sizeAfter, err = store.Size(cmd.Context()); err != nil {
							return err
						}
					}
				}

				if asJSON {
					payload := struct {
						Sweep      api.SweepOutcome `json:"sweep"`
						SizeBefore int64            `json:"sizeBefore,omitempty"`
						SizeAfter  int64            `json:"sizeAfter,omitempty"`
					}{Sweep: outcome}
					if vacuum {
						payload.SizeBefore = sizeBefore
						payload.SizeAfter = sizeAfter
					}
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Sweep deleted %d runs and trimmed %d run logs (%s reclaimed)\n",
					outcome.RunsDeleted, outcome.RunsTrimmed, humanize.Bytes(uint64(outcome.BytesTrimmed)))
				if vacuum {
					fmt.Fprintf(out, "Vacuum compacted database from %s to %s\n",
						humanize.Bytes(uint64(sizeBefore)), humanize.Bytes(uint64(sizeAfter)))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Compact the database file after sweeping")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
