// Package engine invokes external subtitle synchronization tools. Each
// invocation pairs one subtitle with one video and yields a Result; tool
// failures are recorded in the Result rather than surfaced as errors so a
// misbehaving engine never takes the batch down with it.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"subcue/internal/config"
	"subcue/internal/fileutil"
	"subcue/internal/services"
)

// captureLimit bounds how much tool output a Result carries. The tail is
// kept because engines print their verdict last.
const captureLimit = 8 << 10

// CommandRunner executes one external command and returns its captured
// stdout and stderr. Tests substitute this to script engine behaviour.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Result captures one engine invocation against one subtitle.
type Result struct {
	Success  bool
	Skipped  bool
	Duration time.Duration
	Message  string
	Stdout   string
	Stderr   string
	Output   string
}

// Runner executes configured engines. The zero value is not usable; use
// NewRunner.
type Runner struct {
	marker string
	run    CommandRunner
}

// NewRunner returns a Runner that names outputs with the given marker.
func NewRunner(marker string) *Runner {
	return &Runner{marker: marker, run: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(run CommandRunner) {
	if run != nil {
		r.run = run
	}
}

// OutputPath returns where the named engine writes its synchronized copy
// of the subtitle.
func (r *Runner) OutputPath(subtitle, engineName string) string {
	return fileutil.OutputPath(subtitle, engineName, r.marker)
}

// Run invokes one engine for one subtitle/video pair. An existing output
// file short-circuits to a skipped success. The context should be the
// daemon's: cancelling a run leaves in-flight engines untouched, shutting
// the daemon down kills them.
func (r *Runner) Run(ctx context.Context, eng config.Engine, subtitle, video string) Result {
	if eng.Name == "" || eng.Command == "" {
		return Result{Message: "engine command not configured"}
	}
	if subtitle == "" || video == "" {
		return Result{Message: "subtitle and video paths required"}
	}

	output := r.OutputPath(subtitle, eng.Name)
	if _, err := os.Stat(output); err == nil {
		return Result{Success: true, Skipped: true, Message: "already processed", Output: output}
	}

	timeout := time.Duration(eng.Timeout) * time.Second
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := expandArgs(eng.Args, subtitle, video, output)
	start := time.Now()
	stdout, stderr, err := r.run(runCtx, eng.Command, args...)
	result := Result{
		Duration: time.Since(start),
		Stdout:   clampOutput(stdout),
		Stderr:   clampOutput(stderr),
		Output:   output,
	}
	if err != nil {
		switch {
		case timeout > 0 && services.IsTimeout(runCtx.Err()):
			result.Message = fmt.Sprintf("timed out after %s", timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			result.Message = fmt.Sprintf("%s: interrupted by shutdown", eng.Command)
		default:
			result.Message = fmt.Sprintf("%s: %v", eng.Command, err)
		}
		return result
	}

	result.Success = true
	return result
}

// expandArgs substitutes the {sub}, {video}, and {out} placeholders.
func expandArgs(args []string, subtitle, video, output string) []string {
	replacer := strings.NewReplacer("{sub}", subtitle, "{video}", video, "{out}", output)
	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = replacer.Replace(arg)
	}
	return expanded
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// clampOutput trims captured tool output to the capture limit, keeping
// the tail.
func clampOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= captureLimit {
		return s
	}
	return "[output truncated]\n" + s[len(s)-captureLimit:]
}
