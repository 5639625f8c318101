// Package crontabtest provides in-memory collaborators for schedule tests.
package crontabtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"cronus/internal/crontab"
)

// Clock is a manually driven crontab.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Launch is one recorded Runner.Launch call.
type Launch struct {
	Command string
	At      time.Time
	Proc    *Process
}

// Runner records launches. Processes exit immediately unless Hold is set.
type Runner struct {
	Clock crontab.Clock
	// Hold keeps launched processes running until Exit is called on them.
	Hold bool
	// Fail makes every launch return this error.
	Fail error

	mu       sync.Mutex
	launches []Launch
	nextPID  int
}

func (r *Runner) Launch(_ context.Context, command string) (crontab.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	r.nextPID++
	p := &Process{pid: 1000 + r.nextPID, running: r.Hold}
	var at time.Time
	if r.Clock != nil {
		at = r.Clock.Now()
	}
	r.launches = append(r.launches, Launch{Command: command, At: at, Proc: p})
	return p, nil
}

// Launches returns a copy of the launch log.
func (r *Runner) Launches() []Launch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Launch(nil), r.launches...)
}

// Commands returns the launched commands in order.
func (r *Runner) Commands() []string {
	var out []string
	for _, l := range r.Launches() {
		out = append(out, l.Command)
	}
	return out
}

// Reset clears the launch log.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.launches = nil
	r.mu.Unlock()
}

// Process is a fake process handle.
type Process struct {
	mu         sync.Mutex
	pid        int
	running    bool
	terminated bool
	killed     bool
	// Stubborn processes ignore Terminate.
	Stubborn bool
}

func (p *Process) PID() int { return p.pid }

func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	if !p.Stubborn {
		p.running = false
	}
	return nil
}

func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	p.running = false
	return nil
}

func (p *Process) Wait(time.Duration) bool { return !p.Running() }

// Exit marks the process as finished.
func (p *Process) Exit() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Alerts records alert messages.
type Alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *Alerts) Notify(msg string) {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
}

func (a *Alerts) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

// ErrLaunch is a canned launch failure.
var ErrLaunch = errors.New("exec: no such file")
