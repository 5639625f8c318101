package crontab

import (
	"context"
	"fmt"
	"time"

	logx "cronus/pkg/logx"
)

// neverAnchor is far enough ahead that a backward search from it proves a
// schedule can fire at all.
var neverAnchor = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

// Task is one crontab line: an immutable schedule plus the mutable last
// call and the handle of its latest process.
type Task struct {
	line    string // as read, including any last-call comment
	source  string // line without the last-call comment; identity across reloads
	command string

	months, days, weekdays, hours, minutes, seconds FieldSet

	lastCall *LastCall
	created  time.Time

	env  Env
	proc Process
}

func newTask(line, source string, fields [6]string, command string, lc *LastCall, env Env) (*Task, error) {
	domains := [6]Domain{Months, Days, Weekdays, Hours, Minutes, Seconds}
	var sets [6]FieldSet
	for i, expr := range fields {
		fs, err := ParseField(expr, domains[i])
		if err != nil {
			return nil, err
		}
		sets[i] = fs
	}
	t := &Task{
		line:     line,
		source:   source,
		command:  command,
		months:   sets[0],
		days:     sets[1],
		weekdays: sets[2],
		hours:    sets[3],
		minutes:  sets[4],
		seconds:  sets[5],
		lastCall: lc,
		created:  env.Clock.Now(),
		env:      env,
	}
	if _, err := t.ExpectedLastCall(neverAnchor.In(env.Location)); err != nil {
		return nil, err
	}
	return t, nil
}

// Source is the line text without its last-call comment.
func (t *Task) Source() string { return t.source }

func (t *Task) Command() string { return t.command }

func (t *Task) Created() time.Time { return t.created }

// LastCall returns the recorded last call, if any.
func (t *Task) LastCall() (LastCall, bool) {
	if t.lastCall == nil {
		return LastCall{}, false
	}
	return *t.lastCall, true
}

// effectiveLastCall is the last call, or the creation time if none was recorded.
func (t *Task) effectiveLastCall() time.Time {
	if t.lastCall != nil {
		return t.lastCall.Time
	}
	return t.created
}

func (t *Task) setLastCall(at time.Time) {
	at = at.In(t.env.Location)
	if t.lastCall == nil {
		t.lastCall = &LastCall{Format: t.env.NewFormat}
	}
	t.lastCall.Set(at)
}

// Equals matches tasks by source text, not identity.
func (t *Task) Equals(o *Task) bool {
	return t != nil && o != nil && t.source == o.source
}

// Render returns the line as it should be persisted. A task that never
// recorded a last call renders exactly as it was read.
func (t *Task) Render() string {
	if t.lastCall == nil {
		return t.line
	}
	return t.source + " #" + t.lastCall.String()
}

func (t *Task) String() string { return t.Render() }

// Running reports whether the latest process is still alive.
func (t *Task) Running() bool {
	if t.proc != nil && !t.proc.Running() {
		t.proc = nil
	}
	return t.proc != nil
}

// Run describes one launch attempt.
type Run struct {
	At  time.Time
	PID int
	Err error
}

// Execute launches the command unless the previous one is still running,
// in which case it reports false. The last call advances at launch time even
// when the launch fails; failures go to the alert sink only.
func (t *Task) Execute(ctx context.Context) (Run, bool) {
	if t.Running() {
		t.env.Log.Debug("previous run still active", logx.String("task", t.source), logx.Int("pid", t.proc.PID()))
		return Run{}, false
	}
	var run Run
	proc, err := t.env.Runner.Launch(ctx, t.command)
	if err != nil {
		run.Err = err
		t.env.Log.Warn("command launch failed", logx.String("task", t.source), logx.Err(err))
		t.env.Alerts.Notify(fmt.Sprintf("launch failed: %s: %v", t.command, err))
	} else {
		t.proc = proc
		run.PID = proc.PID()
	}
	run.At = t.env.Clock.Now()
	t.setLastCall(run.At)
	return run, true
}

// Adopt migrates state from the previous generation of the same task: the
// earlier of the two last calls wins, and a still-running process moves over.
func (t *Task) Adopt(old *Task) {
	if !t.Equals(old) {
		return
	}
	switch {
	case old.lastCall != nil && (t.lastCall == nil || old.lastCall.Before(*t.lastCall)):
		if t.lastCall == nil {
			t.lastCall = &LastCall{Format: old.lastCall.Format}
		}
		t.lastCall.Set(old.lastCall.Time.In(t.env.Location))
	case old.lastCall == nil && t.lastCall == nil && old.created.Before(t.created):
		t.created = old.created
	}
	if old.Running() {
		t.proc = old.proc
	}
	old.proc = nil
}

// Stop terminates a running process: SIGTERM, up to grace to exit, then SIGKILL.
func (t *Task) Stop(grace time.Duration) {
	if !t.Running() {
		return
	}
	p := t.proc
	t.proc = nil
	if err := p.Terminate(); err != nil {
		t.env.Log.Debug("terminate failed", logx.Int("pid", p.PID()), logx.Err(err))
	}
	if p.Wait(grace) {
		return
	}
	t.env.Log.Warn("process ignored terminate; killing", logx.String("task", t.source), logx.Int("pid", p.PID()))
	_ = p.Kill()
	p.Wait(grace)
}
