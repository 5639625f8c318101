// Package watch reports modifications of a single file as coalesced
// signals. Two sources are available: an fsnotify watcher on the file's
// directory and a stat poller for filesystems without inotify support.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "cronus/pkg/logx"
)

const (
	ModeFSNotify = "fsnotify"
	ModePoll     = "poll"
)

type Config struct {
	Mode      string
	Debounce  time.Duration
	PollEvery time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Mode) == "" {
		c.Mode = ModeFSNotify
	}
	if c.Debounce <= 0 {
		c.Debounce = 100 * time.Millisecond
	}
	if c.PollEvery <= 0 {
		c.PollEvery = time.Second
	}
	return c
}

// Source runs in the background and is consumed through Wait/Drain.
type Source interface {
	Run(ctx context.Context) error
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
	Drain()
}

// New builds the source selected by cfg.Mode.
func New(path string, cfg Config, log logx.Logger) (Source, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Mode) {
	case ModeFSNotify:
		return NewWatcher(path, cfg.Debounce, log), nil
	case ModePoll:
		return NewPoller(path, cfg.PollEvery, log), nil
	default:
		return nil, fmt.Errorf("watch: unknown mode %q", cfg.Mode)
	}
}

// signals is a one-slot queue: any number of posts before a Wait collapse
// into one signal.
type signals struct {
	ch chan struct{}
}

func newSignals() signals { return signals{ch: make(chan struct{}, 1)} }

func (s signals) post() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a signal is pending, timeout elapses or ctx ends.
func (s signals) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		select {
		case <-s.ch:
			return true, nil
		default:
			return false, ctx.Err()
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-s.ch:
		return true, nil
	case <-t.C:
		return false, nil
	}
}

func (s signals) Drain() {
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}
