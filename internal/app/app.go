// Package app wires the daemon together: instance lock, logging, alerts,
// history, the command runner, the change watcher and the scheduler loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"cronus/internal/alert"
	"cronus/internal/config"
	"cronus/internal/crontab"
	"cronus/internal/filelock"
	"cronus/internal/runner"
	rtsup "cronus/internal/runtime/supervisor"
	"cronus/internal/scheduler"
	"cronus/internal/storage"
	"cronus/internal/watch"
	logx "cronus/pkg/logx"
	"cronus/pkg/systemd"
)

type App struct {
	path string
	cfg  *config.Config

	log    logx.Logger
	logs   *logx.Service
	unlock func() error

	alerts *alert.Service
	store  storage.Store
	watch  watch.Source
	sched  *scheduler.Scheduler
	sd     *systemd.Notifier

	sup         *rtsup.Supervisor
	schedCancel context.CancelFunc
	schedDone   chan struct{}
}

// New acquires the crontab's lock and builds every component. Nothing runs
// until Start.
func New(crontabPath string, cfg *config.Config) (*App, error) {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	path, err := filepath.Abs(crontabPath)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	unlock, err := filelock.TryLock(filelock.Path(path))
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	a := &App{path: path, cfg: cfg, unlock: unlock}
	ok := false
	defer func() {
		if !ok {
			a.closeEarly()
		}
	}()

	a.logs, a.log = logx.New(mapLogging(cfg))
	a.log = a.log.With(logx.String("comp", "app"))

	if a.alerts, err = alert.FromConfig(mapAlerts(cfg), a.logs.Logger()); err != nil {
		return nil, err
	}

	if sc, enabled, err := MapStorage(cfg); err != nil {
		return nil, err
	} else if enabled {
		if a.store, err = storage.Open(sc, a.logs.Logger()); err != nil {
			return nil, err
		}
		a.log.Info("history enabled", logx.String("driver", sc.Driver))
	}

	wc, err := mapWatch(cfg)
	if err != nil {
		return nil, err
	}
	if a.watch, err = watch.New(path, wc, a.logs.Logger()); err != nil {
		return nil, err
	}

	scfg, err := mapScheduler(cfg, path)
	if err != nil {
		return nil, err
	}
	format, err := mapNewFormat(cfg)
	if err != nil {
		return nil, err
	}
	a.sd = systemd.New(cfg.Systemd.Notify)

	env := crontab.Env{
		Runner:    runner.New(mapRunner(cfg, path), a.logs.Logger()),
		Alerts:    a.alerts,
		Location:  loc,
		Log:       a.logs.Logger(),
		NewFormat: format,
	}
	a.sched, err = scheduler.New(scfg, env, a.watch, scheduler.Hooks{
		Ready:      a.ready,
		Heartbeat:  a.heartbeat,
		Dispatched: a.record,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	// Alerts outlive the run context so shutdown messages still drain.
	a.alerts.Start(context.WithoutCancel(ctx))

	a.sup.GoRestart("watch", a.watch.Run,
		rtsup.WithRestartBackoff(250*time.Millisecond, 5*time.Second))
	if w, ok := a.watch.(interface{ Started() <-chan struct{} }); ok {
		// Edits made before the watch is armed would be missed.
		select {
		case <-w.Started():
		case <-time.After(2 * time.Second):
			a.log.Warn("watcher slow to start; continuing")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	schedCtx, cancel := context.WithCancel(a.sup.Context())
	a.schedCancel = cancel
	a.schedDone = make(chan struct{})
	a.sup.Go("scheduler", func(context.Context) error {
		defer close(a.schedDone)
		err := a.sched.Run(schedCtx)
		if err == nil && schedCtx.Err() == nil {
			err = errors.New("scheduler exited unexpectedly")
		}
		return err
	})
	a.log.Info("cronus started", logx.String("crontab", a.path), logx.Any("alert_sinks", a.alerts.Sinks()))
	return nil
}

// Run starts the app and blocks until ctx ends or a component fails, then
// stops it. The returned error is the failure, if any.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}
	<-a.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), a.stopBudget())
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		a.log.Warn("stop incomplete", logx.Err(err))
	}
	return a.Err()
}

// stopBudget leaves room for the scheduler's per-process stop grace.
func (a *App) stopBudget() time.Duration {
	grace, _ := config.ParseDurationOrDefault("scheduler.stop_grace", a.cfg.Scheduler.StopGrace, 5*time.Second)
	return 2*grace + 5*time.Second
}

// Stop tears down in order: scheduler (final checkpoint, process teardown),
// change watcher, alert drain, history, lock, logs.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping")
	_ = a.sd.Stopping()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", a.stopBudget(), func(c context.Context) error {
		if a.schedCancel == nil {
			return nil
		}
		a.schedCancel()
		select {
		case <-a.schedDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Stop(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// A recorded component failure is reported through Err.
		return nil
	})
	step("alerts", 3*time.Second, func(c context.Context) error { a.alerts.Stop(c); return nil })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.log.Info("stopped")
	return a.release()
}

// closeEarly releases what New acquired when the app never started.
func (a *App) closeEarly() {
	if a.alerts != nil {
		a.alerts.Stop(context.Background())
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.release()
}

func (a *App) release() error {
	var err error
	if a.unlock != nil {
		err = a.unlock()
		a.unlock = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

func (a *App) ready() {
	if err := a.sd.Ready("serving " + a.path); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	}
}

func (a *App) heartbeat() {
	if err := a.sd.Ping(time.Now()); err != nil {
		a.log.Debug("watchdog ping failed", logx.Err(err))
	}
}

// record stores one launch attempt. It runs on the scheduler goroutine, so
// it is bounded tightly.
func (a *App) record(d scheduler.Dispatch) {
	if a.store == nil {
		return
	}
	e := storage.RunEntry{
		Line:      d.Line,
		Source:    d.Source,
		Command:   d.Command,
		Scheduled: d.Scheduled,
		Started:   d.Run.At,
		PID:       d.Run.PID,
		CatchUp:   d.CatchUp,
	}
	if d.Run.Err != nil {
		e.Error = d.Run.Err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.store.AppendRun(ctx, e); err != nil {
		a.log.Warn("history append failed", logx.Err(err))
	}
}
