package crontab

import (
	"context"
	"errors"
	"time"

	logx "cronus/pkg/logx"
)

// Clock is the time source. Injected so schedules can be evaluated without
// real time passing.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Process is a handle to a launched command.
type Process interface {
	PID() int
	// Running polls without blocking.
	Running() bool
	// Terminate asks the process to exit (SIGTERM).
	Terminate() error
	// Kill forces the process to exit (SIGKILL).
	Kill() error
	// Wait blocks up to timeout and reports whether the process has exited.
	Wait(timeout time.Duration) bool
}

// Runner launches commands.
type Runner interface {
	Launch(ctx context.Context, command string) (Process, error)
}

// Alerter delivers operator-facing messages. Notify must never block.
type Alerter interface {
	Notify(msg string)
}

// Env bundles what a Task needs from the outside world.
type Env struct {
	Clock    Clock
	Runner   Runner
	Alerts   Alerter
	Location *time.Location
	Log      logx.Logger

	// NewFormat is used the first time a task without a recorded last call
	// executes.
	NewFormat Format
}

// WithDefaults fills unset collaborators with the system clock, local time,
// a runner that always fails, a silent alerter and a no-op logger.
func (e Env) WithDefaults() Env {
	if e.Clock == nil {
		e.Clock = SystemClock{}
	}
	if e.Location == nil {
		e.Location = time.Local
	}
	if e.Runner == nil {
		e.Runner = noRunner{}
	}
	if e.Alerts == nil {
		e.Alerts = nopAlerter{}
	}
	if e.Log.IsZero() {
		e.Log = logx.Nop()
	}
	if e.NewFormat == 0 {
		e.NewFormat = FormatEpoch
	}
	return e
}

type noRunner struct{}

func (noRunner) Launch(context.Context, string) (Process, error) {
	return nil, errors.New("no runner configured")
}

type nopAlerter struct{}

func (nopAlerter) Notify(string) {}
