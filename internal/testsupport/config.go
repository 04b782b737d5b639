package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"subcue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The first media root is created so scans succeed without extra setup.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	mediaDir := filepath.Join(base, "media")
	cfgVal.Paths.MediaDirs = []string{mediaDir}
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMediaDirs replaces the media roots on the test config. The
// directories are created if they do not exist.
func WithMediaDirs(dirs ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir media dir %s: %v", dir, err)
			}
		}
		b.cfg.Paths.MediaDirs = dirs
	}
}

// WithMaxConcurrency sets the batch width on the test config.
func WithMaxConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.MaxConcurrency = n
	}
}

// WithEngines replaces the configured engines on the test config.
func WithEngines(engines ...config.Engine) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engines = engines
	}
}

// WithNtfyTopic sets the push notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default engine commands
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffsubsync", "autosubsync"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// MediaDir returns the first media root of the test config.
func MediaDir(cfg *config.Config) string {
	if len(cfg.Paths.MediaDirs) == 0 {
		return ""
	}
	return cfg.Paths.MediaDirs[0]
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
