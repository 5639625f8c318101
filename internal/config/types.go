package config

// Config is the daemon's optional settings file. Every key has a default
// (see Default); a missing file means all defaults.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Timezone is an IANA name used to evaluate schedules. Empty means local.
	Timezone string `json:"timezone,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Runner    RunnerConfig    `json:"runner"`
	Watch     WatchConfig     `json:"watch"`
	Logging   LoggingConfig   `json:"logging"`
	Alerts    AlertsConfig    `json:"alerts"`
	Storage   StorageConfig   `json:"storage"`
	Systemd   SystemdConfig   `json:"systemd"`
}

type SchedulerConfig struct {
	CheckpointInterval string `json:"checkpoint_interval"`
	WakeupInterval     string `json:"wakeup_interval"`
	Lookahead          string `json:"lookahead"`
	PollInterval       string `json:"poll_interval"`
	SelfWriteTimeout   string `json:"self_write_timeout"`
	StopGrace          string `json:"stop_grace"`
	// NewLastCallFormat is "epoch" or "human"; used for a task's first run.
	NewLastCallFormat string `json:"new_last_call_format"`
}

type RunnerConfig struct {
	Shell string `json:"shell"`
	// Dir is the working directory for commands. Empty means the crontab's
	// directory.
	Dir string `json:"dir,omitempty"`
}

// WatchConfig selects how crontab edits are noticed.
//
// Mode values:
//   - "fsnotify": kernel notifications on the crontab's directory
//   - "poll": stat the file every poll_every
type WatchConfig struct {
	Mode      string `json:"mode"`
	Debounce  string `json:"debounce"`
	PollEvery string `json:"poll_every"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type AlertsConfig struct {
	Log        bool           `json:"log"`
	Desktop    bool           `json:"desktop"`
	RatePerSec int            `json:"rate_per_sec"`
	QueueSize  int            `json:"queue_size"`
	Telegram   TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // do not log
	ChatID  int64  `json:"chat_id,omitempty"`
	// URL overrides the Bot API endpoint (self-hosted API servers).
	URL string `json:"url,omitempty"`
}

// StorageConfig controls run history.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cronus_history.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	Keep        int    `json:"keep,omitempty"`
}

type SystemdConfig struct {
	// Notify sends READY/WATCHDOG/STOPPING when NOTIFY_SOCKET is set.
	Notify bool `json:"notify"`
}

// Default returns the built-in settings. Parse decodes on top of it, so
// omitted keys keep these values.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			CheckpointInterval: "5s",
			WakeupInterval:     "10m",
			Lookahead:          "24h",
			PollInterval:       "5s",
			SelfWriteTimeout:   "5s",
			StopGrace:          "5s",
			NewLastCallFormat:  "epoch",
		},
		Runner: RunnerConfig{Shell: "/bin/sh"},
		Watch:  WatchConfig{Mode: "fsnotify", Debounce: "100ms", PollEvery: "1s"},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LoggingFile{Path: "./cronus.log"},
		},
		Alerts: AlertsConfig{
			Log:        true,
			Desktop:    true,
			RatePerSec: 1,
			QueueSize:  64,
		},
		Storage: StorageConfig{Driver: "none", Path: "./cronus_history", BusyTimeout: "2s"},
		Systemd: SystemdConfig{Notify: true},
	}
}
