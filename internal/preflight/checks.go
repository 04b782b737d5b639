package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"subcue/internal/config"
	"subcue/internal/runstore"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMediaRoot verifies that a media root exists and can be read and
// traversed. Roots are never written to, so write access is not
// required.
func CheckMediaRoot(path string) Result {
	name := fmt.Sprintf("Media root %s", path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: "does not exist"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("stat: %v", err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: "is not a directory"}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("insufficient permissions: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: "read ok"}
}

// CheckStore verifies that the state store opens and passes its health
// probe. The check creates the database when it does not exist yet,
// exactly as the daemon would on first start.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	const name = "State store"
	store, err := runstore.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open: %v", err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health probe: %v", err)}
	}
	if !health.IntegrityOK || !health.SchemaOK {
		return Result{Name: name, Detail: health.HealthSummary()}
	}
	return Result{Name: name, Passed: true, Detail: health.HealthSummary()}
}

// EngineCheck reports the availability of one configured engine binary.
type EngineCheck struct {
	Name      string
	Command   string
	Enabled   bool
	Available bool
	Detail    string
}

// Engines evaluates every configured engine, enabled or not, so status
// output can show disabled entries alongside active ones.
func Engines(cfg *config.Config) []EngineCheck {
	if cfg == nil {
		return nil
	}
	checks := make([]EngineCheck, 0, len(cfg.Engines))
	for _, eng := range cfg.Engines {
		check := EngineCheck{
			Name:    eng.Name,
			Command: strings.TrimSpace(eng.Command),
			Enabled: eng.Enabled,
		}
		switch {
		case check.Command == "":
			check.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(check.Command); err != nil {
				check.Detail = fmt.Sprintf("binary %q not found", check.Command)
			} else {
				check.Available = true
				check.Detail = "available"
			}
		}
		checks = append(checks, check)
	}
	return checks
}
