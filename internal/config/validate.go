package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.MediaDirs) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/subcue/config.toml"
		}
		return fmt.Errorf("paths.media_dirs must list at least one directory. Edit %s (create with 'subcue config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateEngines() error {
	if len(c.Engines) == 0 {
		return errors.New("engines must define at least one [[engines]] entry")
	}
	seen := make(map[string]struct{}, len(c.Engines))
	enabled := 0
	for i, eng := range c.Engines {
		if strings.TrimSpace(eng.Name) == "" {
			return fmt.Errorf("engines[%d].name must be set", i)
		}
		if strings.TrimSpace(eng.Command) == "" {
			return fmt.Errorf("engines[%d].command must be set (engine %q)", i, eng.Name)
		}
		if _, dup := seen[eng.Name]; dup {
			return fmt.Errorf("engines names must be unique; %q appears more than once", eng.Name)
		}
		seen[eng.Name] = struct{}{}
		if eng.Timeout < 0 {
			return fmt.Errorf("engines[%d].timeout must be >= 0 (engine %q)", i, eng.Name)
		}
		if eng.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("engines must include at least one enabled entry")
	}
	return nil
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.max_concurrency":  c.Sync.MaxConcurrency,
		"sync.engine_timeout":   c.Sync.EngineTimeout,
		"scan.walk_concurrency": c.Scan.WalkConcurrency,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.TrimDays > c.Retention.KeepDays && c.Retention.KeepDays > 0 {
		return errors.New("retention.trim_days must not exceed retention.keep_days")
	}
	if c.Retention.MaxLogBytes <= 0 {
		return errors.New("retention.max_log_bytes must be positive")
	}
	if c.Retention.SweepInterval <= 0 {
		return errors.New("retention.sweep_interval must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
