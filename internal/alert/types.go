// Package alert delivers operator-facing messages (unparsable crontab lines,
// launch failures, unreadable files) without ever blocking the scheduler.
package alert

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueFull = errors.New("alert queue full")
	ErrStopped   = errors.New("alert service stopped")
)

type Config struct {
	// Log writes every alert to the daemon log at warn level.
	Log bool
	// Desktop pops a desktop notification when a notifier binary exists.
	Desktop    bool
	RatePerSec int
	QueueSize  int
	Telegram   TelegramConfig
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
	// URL overrides the Bot API endpoint. Empty means api.telegram.org.
	URL string
}

type Alert struct {
	At   time.Time
	Text string
}

// Deliverer is one sink. Deliver may block; the service bounds it with ctx.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
}
