package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeEngines()
	c.normalizeSync()
	c.normalizeRetention()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	roots := make([]string, 0, len(c.Paths.MediaDirs))
	seen := make(map[string]struct{}, len(c.Paths.MediaDirs))
	for _, dir := range c.Paths.MediaDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.media_dirs: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Paths.MediaDirs = roots

	excludes := make([]string, 0, len(c.Paths.ExcludeDirs))
	for _, dir := range c.Paths.ExcludeDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.exclude_dirs: %w", err)
		}
		excludes = append(excludes, expanded)
	}
	c.Paths.ExcludeDirs = excludes

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	exts := make([]string, 0, len(c.Scan.SubtitleExtensions))
	seen := make(map[string]struct{}, len(c.Scan.SubtitleExtensions))
	for _, ext := range c.Scan.SubtitleExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = []string{".srt"}
	}
	c.Scan.SubtitleExtensions = exts

	c.Scan.OutputMarker = strings.ToLower(strings.Trim(strings.TrimSpace(c.Scan.OutputMarker), "."))
	if c.Scan.OutputMarker == "" {
		c.Scan.OutputMarker = defaultOutputMarker
	}
	if c.Scan.WalkConcurrency <= 0 {
		c.Scan.WalkConcurrency = defaultWalkConcurrency
	}
}

func (c *Config) normalizeEngines() {
	engines := make([]Engine, 0, len(c.Engines))
	for _, eng := range c.Engines {
		eng.Name = strings.ToLower(strings.TrimSpace(eng.Name))
		eng.Command = strings.TrimSpace(eng.Command)
		if eng.Name == "" && eng.Command != "" {
			eng.Name = strings.ToLower(eng.Command)
		}
		engines = append(engines, eng)
	}
	c.Engines = engines
}

func (c *Config) normalizeSync() {
	if c.Sync.MaxConcurrency <= 0 {
		c.Sync.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Sync.EngineTimeout <= 0 {
		c.Sync.EngineTimeout = defaultEngineTimeout
	}
}

func (c *Config) normalizeRetention() {
	if c.Retention.KeepDays < 0 {
		c.Retention.KeepDays = 0
	}
	if c.Retention.TrimDays < 0 {
		c.Retention.TrimDays = 0
	}
	if c.Retention.MaxLogBytes <= 0 {
		c.Retention.MaxLogBytes = defaultRetentionMaxLogBytes
	}
	if c.Retention.SweepInterval <= 0 {
		c.Retention.SweepInterval = defaultRetentionSweep
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SUBCUE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
