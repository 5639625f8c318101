// Package runner starts crontab commands through the shell, each in its own
// process group so a terminate reaches the whole pipeline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"cronus/internal/crontab"
	logx "cronus/pkg/logx"
)

// ErrLaunch wraps every failure to start a command.
var ErrLaunch = errors.New("launch failed")

type Config struct {
	Shell string // default /bin/sh
	Dir   string
	// Stdout and Stderr default to the daemon's own.
	Stdout io.Writer
	Stderr io.Writer
}

type Runner struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Runner {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Runner{cfg: cfg, log: log.With(logx.String("comp", "runner"))}
}

// Launch starts `shell -c command` and returns immediately. The process is
// not tied to ctx: it outlives reloads and is stopped explicitly.
func (r *Runner) Launch(_ context.Context, command string) (crontab.Process, error) {
	cmd := exec.Command(r.cfg.Shell, "-c", command)
	cmd.Dir = r.cfg.Dir
	cmd.Stdout = r.cfg.Stdout
	cmd.Stderr = r.cfg.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, command, err)
	}

	p := &Process{pid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		if cmd.ProcessState != nil {
			p.code = cmd.ProcessState.ExitCode()
		}
		p.mu.Unlock()
		close(p.done)
		if err != nil {
			r.log.Debug("command exited", logx.Int("pid", p.pid), logx.Err(err))
		}
	}()
	return p, nil
}

// Process is a launched command. It is reaped in the background.
type Process struct {
	pid  int
	done chan struct{}

	mu   sync.Mutex
	err  error
	code int
}

func (p *Process) PID() int { return p.pid }

func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) Terminate() error { return p.signal(unix.SIGTERM) }

func (p *Process) Kill() error { return p.signal(unix.SIGKILL) }

// signal targets the process group; a group that is already gone is fine.
func (p *Process) signal(sig unix.Signal) error {
	if !p.Running() {
		return nil
	}
	if err := unix.Kill(-p.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func (p *Process) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// ExitCode is -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	if p.Running() {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

// Err is the result of waiting for the process, nil while running.
func (p *Process) Err() error {
	if p.Running() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
