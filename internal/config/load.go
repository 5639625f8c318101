package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	logx "cronus/pkg/logx"
)

// Load reads and validates the file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		return &cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data on top of Default() and validates the result. YAML is
// chosen by path extension; anything else is JSON. Unknown keys are errors.
func Parse(path string, data []byte) (*Config, error) {
	if isYAML(path) {
		j, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = j
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects negative or malformed durations, unknown enum values, an
// unknown timezone and an incomplete telegram sink.
func (c *Config) Validate() error {
	for _, f := range c.durationFields() {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Scheduler.NewLastCallFormat)) {
	case "", "epoch", "human":
	default:
		return fmt.Errorf("scheduler.new_last_call_format: unknown %q (want epoch or human)", c.Scheduler.NewLastCallFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.Watch.Mode)) {
	case "", "fsnotify", "poll":
	default:
		return fmt.Errorf("watch.mode: unknown %q (want fsnotify or poll)", c.Watch.Mode)
	}
	if !logx.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unknown %q", c.Logging.Level)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		return errors.New("logging.file.path is required when logging.file.enabled is true")
	}
	if c.Alerts.RatePerSec < 0 {
		return errors.New("alerts.rate_per_sec must be >= 0")
	}
	if c.Alerts.QueueSize < 0 {
		return errors.New("alerts.queue_size must be >= 0")
	}
	if tg := c.Alerts.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			return errors.New("alerts.telegram.token is required when alerts.telegram.enabled is true")
		}
		if tg.ChatID == 0 {
			return errors.New("alerts.telegram.chat_id is required when alerts.telegram.enabled is true")
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required when storage.driver=%s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver: unknown %q (want none, file or sqlite)", c.Storage.Driver)
	}
	if c.Storage.Keep < 0 {
		return errors.New("storage.keep must be >= 0")
	}
	return nil
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}
