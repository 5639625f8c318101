package scheduler

import (
	"context"
	"time"

	"cronus/internal/crontab"
)

// Config controls the daemon loop. Zero durations take the defaults below.
type Config struct {
	Path string

	CheckpointInterval time.Duration // 5s
	WakeupInterval     time.Duration // 10m
	Lookahead          time.Duration // 24h
	PollInterval       time.Duration // 5s
	SelfWriteTimeout   time.Duration // 5s
	StopGrace          time.Duration // 5s
}

func (c Config) withDefaults() Config {
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 5 * time.Second
	}
	if c.WakeupInterval <= 0 {
		c.WakeupInterval = 10 * time.Minute
	}
	if c.Lookahead <= 0 {
		c.Lookahead = 24 * time.Hour
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.SelfWriteTimeout <= 0 {
		c.SelfWriteTimeout = 5 * time.Second
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	return c
}

// Outcome is the result of a wait. FileChanged and WakeUp restart the main
// loop; they are control flow, not failures.
type Outcome int

const (
	Continue Outcome = iota
	FileChanged
	WakeUp
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case FileChanged:
		return "file_changed"
	case WakeUp:
		return "wake_up"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Notifier delivers "the crontab was modified" signals.
type Notifier interface {
	// Wait blocks until a signal arrives, timeout elapses or ctx ends.
	// It reports whether a signal arrived.
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
	// Drain discards every pending signal.
	Drain()
}

// Dispatch describes one task launch handed to Hooks.Dispatched.
type Dispatch struct {
	Line      int // 1-based
	Source    string
	Command   string
	Scheduled time.Time
	CatchUp   bool
	Run       crontab.Run
}

// Hooks are optional callbacks into the surrounding process.
type Hooks struct {
	// Ready runs once after the first successful read.
	Ready func()
	// Heartbeat runs on every poll step while waiting.
	Heartbeat func()
	// Dispatched runs after every launch attempt.
	Dispatched func(Dispatch)
}
