package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subcue/internal/config"
	"subcue/internal/ipc"
	"subcue/internal/logging"
	"subcue/internal/logs"
)

// logFollowWaitMillis is how long the daemon holds a follow request
// open waiting for new events before returning an empty batch.
const logFollowWaitMillis = 1000

func newLogCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Display daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			err = streamLogsFromDaemon(cmd, ctx, lines, follow)
			if err == nil {
				return nil
			}
			if !errors.Is(err, errLogStreamUnavailable) {
				return err
			}
			return tailLogFile(cmd, cfg, lines, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

// errLogStreamUnavailable routes the log command to the on-disk fallback.
var errLogStreamUnavailable = errors.New("log stream unavailable")

// streamLogsFromDaemon prints events from the daemon's in-memory stream
// hub. The initial request grabs the newest buffered events; follow
// requests then resume from the returned cursor.
func streamLogsFromDaemon(cmd *cobra.Command, ctx *commandContext, lines int, follow bool) error {
	client, err := ipc.Dial(ctx.socketPath())
	if err != nil {
		return errLogStreamUnavailable
	}
	defer client.Close()

	resp, err := client.LogTail(ipc.LogTailRequest{TailLines: lines})
	if err != nil {
		return fmt.Errorf("tail logs: %w", err)
	}
	printed := false
	for _, evt := range resp.Events {
		fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
		printed = true
	}
	if !follow {
		if !printed {
			fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
		}
		return nil
	}

	since := resp.Next
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}
		resp, err := client.LogTail(ipc.LogTailRequest{
			Since:      since,
			Follow:     true,
			WaitMillis: logFollowWaitMillis,
		})
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
		}
		since = resp.Next
	}
}

// tailLogFile reads the daemon's current log file directly. The daemon
// keeps a stable pointer at <log_dir>/subcue.log for exactly this case.
func tailLogFile(cmd *cobra.Command, cfg *config.Config, lines int, follow bool) error {
	path := filepath.Join(cfg.Paths.LogDir, "subcue.log")

	opts := logs.TailOptions{Offset: -1, Limit: lines}
	if lines <= 0 {
		opts.Offset = 0
	}

	printed := false
	for {
		result, err := logs.Tail(cmd.Context(), path, opts)
		if err != nil {
			return fmt.Errorf("tail log file: %w", err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}
		opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Second}
	}
}

func formatLogEvent(evt logging.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeLogSubject(evt); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}

func composeLogSubject(evt logging.LogEvent) string {
	target := strings.TrimSpace(evt.File)
	if target != "" {
		target = filepath.Base(target)
	}
	if engine := strings.TrimSpace(evt.Engine); engine != "" {
		if target != "" {
			target += " (" + engine + ")"
		} else {
			target = engine
		}
	}
	runID := strings.TrimSpace(evt.RunID)
	switch {
	case runID != "" && target != "":
		return fmt.Sprintf("run %s %s", shortRunID(runID), target)
	case runID != "":
		return "run " + shortRunID(runID)
	default:
		return target
	}
}

// shortRunID trims UUID run IDs to their leading group for display.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
