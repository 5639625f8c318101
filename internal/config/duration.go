package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a non-negative duration. Empty means 0.
// path names the key in errors ("scheduler.lookahead").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with 0 replaced by def.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// durationField pairs a config key with its raw value for bulk validation.
type durationField struct {
	path string
	raw  string
}

func (c *Config) durationFields() []durationField {
	return []durationField{
		{"scheduler.checkpoint_interval", c.Scheduler.CheckpointInterval},
		{"scheduler.wakeup_interval", c.Scheduler.WakeupInterval},
		{"scheduler.lookahead", c.Scheduler.Lookahead},
		{"scheduler.poll_interval", c.Scheduler.PollInterval},
		{"scheduler.self_write_timeout", c.Scheduler.SelfWriteTimeout},
		{"scheduler.stop_grace", c.Scheduler.StopGrace},
		{"watch.debounce", c.Watch.Debounce},
		{"watch.poll_every", c.Watch.PollEvery},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	}
}
