package app

import (
	"path/filepath"
	"strings"
	"time"

	"cronus/internal/alert"
	"cronus/internal/config"
	"cronus/internal/crontab"
	"cronus/internal/runner"
	"cronus/internal/scheduler"
	"cronus/internal/storage"
	"cronus/internal/watch"
	logx "cronus/pkg/logx"
)

// The mappers below assume cfg passed config.Validate, so duration parse
// errors are still returned but never expected.

func mapScheduler(cfg *config.Config, path string) (scheduler.Config, error) {
	sc := cfg.Scheduler
	var (
		out = scheduler.Config{Path: path}
		err error
	)
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"scheduler.checkpoint_interval", sc.CheckpointInterval, &out.CheckpointInterval},
		{"scheduler.wakeup_interval", sc.WakeupInterval, &out.WakeupInterval},
		{"scheduler.lookahead", sc.Lookahead, &out.Lookahead},
		{"scheduler.poll_interval", sc.PollInterval, &out.PollInterval},
		{"scheduler.self_write_timeout", sc.SelfWriteTimeout, &out.SelfWriteTimeout},
		{"scheduler.stop_grace", sc.StopGrace, &out.StopGrace},
	}
	for _, f := range fields {
		// 0 falls through to the scheduler's own default.
		if *f.dst, err = config.ParseDurationField(f.key, f.raw); err != nil {
			return scheduler.Config{}, err
		}
	}
	return out, nil
}

func mapNewFormat(cfg *config.Config) (crontab.Format, error) {
	if strings.TrimSpace(cfg.Scheduler.NewLastCallFormat) == "" {
		return crontab.FormatEpoch, nil
	}
	return crontab.ParseFormat(cfg.Scheduler.NewLastCallFormat)
}

func mapRunner(cfg *config.Config, path string) runner.Config {
	dir := strings.TrimSpace(cfg.Runner.Dir)
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return runner.Config{Shell: cfg.Runner.Shell, Dir: dir}
}

func mapWatch(cfg *config.Config) (watch.Config, error) {
	debounce, err := config.ParseDurationField("watch.debounce", cfg.Watch.Debounce)
	if err != nil {
		return watch.Config{}, err
	}
	every, err := config.ParseDurationField("watch.poll_every", cfg.Watch.PollEvery)
	if err != nil {
		return watch.Config{}, err
	}
	mode := watch.ModeFSNotify
	if strings.EqualFold(strings.TrimSpace(cfg.Watch.Mode), "poll") {
		mode = watch.ModePoll
	}
	return watch.Config{Mode: mode, Debounce: debounce, PollEvery: every}, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapAlerts(cfg *config.Config) alert.Config {
	ac := cfg.Alerts
	return alert.Config{
		Log:        ac.Log,
		Desktop:    ac.Desktop,
		RatePerSec: ac.RatePerSec,
		QueueSize:  ac.QueueSize,
		Telegram: alert.TelegramConfig{
			Enabled: ac.Telegram.Enabled,
			Token:   ac.Telegram.Token,
			ChatID:  ac.Telegram.ChatID,
			URL:     ac.Telegram.URL,
		},
	}
}

// MapStorage reports whether history is enabled. `cronus history` shares it.
func MapStorage(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
		Keep:        sc.Keep,
	}, true, nil
}
