package config

const (
	defaultDataDir              = "~/.local/share/subcue"
	defaultLogDir               = "~/.local/share/subcue/logs"
	defaultOutputMarker         = "synced"
	defaultWalkConcurrency      = 4
	defaultMaxConcurrency       = 1
	defaultEngineTimeout        = 300
	defaultRetentionKeepDays    = 30
	defaultRetentionTrimDays    = 7
	defaultRetentionMaxLogBytes = 256 * 1024
	defaultRetentionSweep       = 3600
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Scan: Scan{
			SubtitleExtensions: []string{".srt"},
			OutputMarker:       defaultOutputMarker,
			WalkConcurrency:    defaultWalkConcurrency,
		},
		Engines: []Engine{
			{
				Name:    "ffsubsync",
				Command: "ffsubsync",
				Args:    []string{"{video}", "-i", "{sub}", "-o", "{out}"},
				Enabled: true,
			},
			{
				Name:    "autosubsync",
				Command: "autosubsync",
				Args:    []string{"{video}", "{sub}", "{out}"},
				Enabled: true,
			},
		},
		Sync: Sync{
			MaxConcurrency: defaultMaxConcurrency,
			EngineTimeout:  defaultEngineTimeout,
		},
		Retention: Retention{
			KeepDays:      defaultRetentionKeepDays,
			TrimDays:      defaultRetentionTrimDays,
			MaxLogBytes:   defaultRetentionMaxLogBytes,
			SweepInterval: defaultRetentionSweep,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
