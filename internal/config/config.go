package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MediaDirs   []string `toml:"media_dirs"`
	ExcludeDirs []string `toml:"exclude_dirs"`
	DataDir     string   `toml:"data_dir"`
	LogDir      string   `toml:"log_dir"`
}

// Scan contains configuration for subtitle discovery.
type Scan struct {
	SubtitleExtensions []string `toml:"subtitle_extensions"`
	OutputMarker       string   `toml:"output_marker"`
	WalkConcurrency    int      `toml:"walk_concurrency"`
}

// Engine describes one external synchronization tool. Args entries may use the
// placeholders {sub}, {video}, and {out}, expanded per invocation.
type Engine struct {
	Name    string   `toml:"name"`
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Timeout int      `toml:"timeout"`
	Enabled bool     `toml:"enabled"`
}

// Sync contains run execution settings.
type Sync struct {
	MaxConcurrency int `toml:"max_concurrency"`
	EngineTimeout  int `toml:"engine_timeout"`
}

// Retention contains configuration for the store sweep.
type Retention struct {
	KeepDays      int   `toml:"keep_days"`
	TrimDays      int   `toml:"trim_days"`
	MaxLogBytes   int64 `toml:"max_log_bytes"`
	SweepInterval int   `toml:"sweep_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Subcue.
//
// Configuration sections by subsystem:
//   - Paths: media roots to scan, exclusions, data and log directories
//   - Scan: subtitle extensions and the engine-output naming marker
//   - Engines: external synchronization tools invoked per file
//   - Sync: batch concurrency and the default engine timeout
//   - Retention: run history pruning and log trimming policy
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scan          Scan          `toml:"scan"`
	Engines       []Engine      `toml:"engines"`
	Sync          Sync          `toml:"sync"`
	Retention     Retention     `toml:"retention"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subcue/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/subcue/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subcue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. Media
// roots are not created; they must already exist and are checked by preflight.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite state store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "subcue.db")
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "subcue.sock")
}

// EnabledEngines returns the configured engines with Enabled set, in
// configuration order, with timeouts resolved against sync.engine_timeout.
func (c *Config) EnabledEngines() []Engine {
	out := make([]Engine, 0, len(c.Engines))
	for _, eng := range c.Engines {
		if !eng.Enabled {
			continue
		}
		if eng.Timeout <= 0 {
			eng.Timeout = c.Sync.EngineTimeout
		}
		out = append(out, eng)
	}
	return out
}

// EngineTimeout returns the resolved timeout for the named engine.
func (c *Config) EngineTimeout(name string) time.Duration {
	for _, eng := range c.Engines {
		if eng.Name != name {
			continue
		}
		if eng.Timeout > 0 {
			return time.Duration(eng.Timeout) * time.Second
		}
		break
	}
	return time.Duration(c.Sync.EngineTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
