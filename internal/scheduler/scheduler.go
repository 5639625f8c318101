package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cronus/internal/crontab"
	logx "cronus/pkg/logx"
)

// Scheduler owns the task generation read from one crontab file and turns
// its occurrences into launches. All state is touched by the Run goroutine
// only.
type Scheduler struct {
	cfg    Config
	env    crontab.Env
	notify Notifier
	hooks  Hooks
	log    logx.Logger

	doc    document
	tasks  map[int]*crontab.Task
	order  []int // sorted keys of tasks
	events []Event

	now        time.Time // logical time; advances to each wait target
	floor      time.Time // just after the latest dispatched event
	checkpoint time.Time
}

func New(cfg Config, env crontab.Env, notify Notifier, hooks Hooks) (*Scheduler, error) {
	if cfg.Path == "" {
		return nil, errors.New("scheduler: crontab path is required")
	}
	if notify == nil {
		return nil, errors.New("scheduler: notifier is required")
	}
	env = env.WithDefaults()
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		env:    env,
		notify: notify,
		hooks:  hooks,
		log:    env.Log.With(logx.String("comp", "scheduler"), logx.String("file", filepath.Base(cfg.Path))),
		tasks:  map[int]*crontab.Task{},
	}, nil
}

// Run reads the crontab and serves it until ctx is cancelled or a fatal
// error occurs. Either way it flushes last calls and stops running
// processes before returning. Cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.now = s.env.Clock.Now()
	s.checkpoint = s.now.Truncate(s.cfg.CheckpointInterval)
	if err := s.reload(true); err != nil {
		return err
	}
	if s.hooks.Ready != nil {
		s.hooks.Ready()
	}
	defer s.shutdown()

	for {
		out, err := s.mainActivity(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch out {
		case FileChanged:
			s.log.Info("crontab changed; reloading")
			if err := s.reload(false); err != nil {
				return err
			}
		case WakeUp:
			s.log.Info("woke up late; recomputing schedule", logx.Time("now", s.env.Clock.Now()))
		}
	}
}

// reload reads the file into a new generation and migrates state from the
// current one. A read failure is fatal only on the first read.
func (s *Scheduler) reload(first bool) error {
	doc, err := readDocument(s.cfg.Path)
	if err != nil {
		if first {
			return fmt.Errorf("read crontab: %w", err)
		}
		s.log.Warn("crontab read failed; keeping previous tasks", logx.Err(err))
		s.env.Alerts.Notify(fmt.Sprintf("cannot read %s: %v", s.cfg.Path, err))
		return nil
	}

	tasks, errs := crontab.ParseLines(doc.lines, s.env)
	for _, le := range errs {
		s.log.Warn("invalid crontab line", logx.Int("line", le.Line), logx.String("text", le.Text), logx.Err(le.Err))
		s.env.Alerts.Notify(fmt.Sprintf("%s:%d: %v", filepath.Base(s.cfg.Path), le.Line, le.Err))
	}
	order := sortedLines(tasks)
	s.migrate(tasks, order)

	s.doc = doc
	s.tasks = tasks
	s.order = order
	s.log.Info("crontab loaded", logx.Int("tasks", len(tasks)), logx.Int("invalid", len(errs)))
	return nil
}

// migrate pairs every new task with at most one equal task of the previous
// generation; the earlier last call and any running process carry over.
// Processes of tasks that disappeared are stopped.
func (s *Scheduler) migrate(tasks map[int]*crontab.Task, order []int) {
	claimed := make(map[int]bool, len(s.tasks))
	for _, line := range order {
		nt := tasks[line]
		for _, old := range s.order {
			if claimed[old] || !nt.Equals(s.tasks[old]) {
				continue
			}
			nt.Adopt(s.tasks[old])
			claimed[old] = true
			break
		}
	}
	var orphans []*crontab.Task
	for _, old := range s.order {
		if !claimed[old] && s.tasks[old].Running() {
			s.log.Info("stopping process of removed task", logx.String("task", s.tasks[old].Source()))
			orphans = append(orphans, s.tasks[old])
		}
	}
	stopAll(orphans, s.cfg.StopGrace)
}

func (s *Scheduler) mainActivity(ctx context.Context) (Outcome, error) {
	s.now = s.env.Clock.Now()
	s.runSkipped(ctx)
	s.events = nil
	for {
		ev, out, err := s.nextEvent(ctx)
		if err != nil || out != Continue {
			return out, err
		}
		if ev.At.After(s.env.Clock.Now()) {
			if out, err := s.wait(ctx, ev.At); err != nil || out != Continue {
				return out, err
			}
		}
		s.dispatch(ctx, ev)
	}
}

// runSkipped fires, once, every task that missed an occurrence.
func (s *Scheduler) runSkipped(ctx context.Context) {
	for _, line := range append([]int(nil), s.order...) {
		task := s.tasks[line]
		expected, err := task.ExpectedLastCall(s.now)
		if err != nil {
			s.drop(line, err)
			continue
		}
		skipped, _ := task.Skipped(s.now)
		if !skipped {
			continue
		}
		s.log.Info("catching up skipped task", logx.Int("line", line+1), logx.Time("expected", expected))
		s.execute(ctx, line, task, expected, true)
	}
}

// drop removes a task whose schedule turned out to be unsearchable.
func (s *Scheduler) drop(line int, err error) {
	s.log.Warn("dropping task", logx.Int("line", line+1), logx.Err(err))
	s.env.Alerts.Notify(fmt.Sprintf("%s:%d: %v", filepath.Base(s.cfg.Path), line+1, err))
	delete(s.tasks, line)
	s.order = sortedLines(s.tasks)
}

func (s *Scheduler) nextEvent(ctx context.Context) (Event, Outcome, error) {
	for len(s.events) == 0 {
		s.events = s.determineEvents()
		if len(s.events) == 0 {
			if out, err := s.wait(ctx, s.now.Add(s.cfg.Lookahead)); err != nil || out != Continue {
				return Event{}, out, err
			}
		}
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, Continue, nil
}

func (s *Scheduler) determineEvents() []Event {
	from := s.now
	if s.floor.After(from) {
		from = s.floor
	}
	to := s.now.Add(s.cfg.Lookahead)
	calls := make(map[int][]time.Time, len(s.tasks))
	for line, task := range s.tasks {
		if c := task.Calls(from, to); len(c) > 0 {
			calls[line] = c
		}
	}
	return mergeEvents(calls, s.tasks)
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) {
	s.floor = ev.At.Add(time.Microsecond)
	for i, task := range ev.Tasks {
		s.execute(ctx, ev.Lines[i], task, ev.At, false)
	}
}

func (s *Scheduler) execute(ctx context.Context, line int, task *crontab.Task, scheduled time.Time, catchUp bool) {
	run, ok := task.Execute(ctx)
	if !ok {
		s.log.Debug("skipping launch; previous run still active", logx.Int("line", line+1))
		return
	}
	if run.Err == nil {
		s.log.Info("task launched", logx.Int("line", line+1), logx.String("cmd", task.Command()), logx.Int("pid", run.PID))
	}
	if s.hooks.Dispatched != nil {
		s.hooks.Dispatched(Dispatch{
			Line:      line + 1,
			Source:    task.Source(),
			Command:   task.Command(),
			Scheduled: scheduled,
			CatchUp:   catchUp,
			Run:       run,
		})
	}
}

// wait flushes a due checkpoint, then sleeps until the logical clock can
// move to until.
func (s *Scheduler) wait(ctx context.Context, until time.Time) (Outcome, error) {
	if s.checkpoint.Add(s.cfg.CheckpointInterval).Before(until) {
		if out, err := s.flush(ctx, true); err != nil || out != Continue {
			return out, err
		}
	}
	if out, err := s.sleep(ctx, until); err != nil || out != Continue {
		return out, err
	}
	s.now = until
	return Continue, nil
}

func (s *Scheduler) sleep(ctx context.Context, until time.Time) (Outcome, error) {
	for {
		if s.hooks.Heartbeat != nil {
			s.hooks.Heartbeat()
		}
		left := until.Sub(s.env.Clock.Now())
		if left > 0 {
			out, err := s.watchFile(ctx, min(left, s.cfg.PollInterval))
			if err != nil || out == FileChanged {
				return out, err
			}
			continue
		}
		if -left < s.cfg.WakeupInterval {
			return Continue, nil
		}
		s.log.Warn("overdue past wake-up interval", logx.Duration("overdue", -left))
		return WakeUp, nil
	}
}

func (s *Scheduler) watchFile(ctx context.Context, timeout time.Duration) (Outcome, error) {
	changed, err := s.notify.Wait(ctx, timeout)
	if err != nil {
		return Continue, err
	}
	if changed {
		s.notify.Drain()
		return FileChanged, nil
	}
	return TimedOut, nil
}

// flush writes changed last calls back to the file. With observe set it
// then consumes the notification its own write produced. An out-of-band
// edit since the last read is reported as FileChanged and nothing is
// written.
func (s *Scheduler) flush(ctx context.Context, observe bool) (Outcome, error) {
	if len(s.tasks) == 0 || len(s.doc.lines) == 0 {
		s.checkpoint = s.now
		return Continue, nil
	}
	next := s.doc
	next.lines = append([]string(nil), s.doc.lines...)
	changed := 0
	for line, task := range s.tasks {
		if line >= len(next.lines) {
			continue
		}
		if r := task.Render(); r != next.lines[line] {
			next.lines[line] = r
			changed++
		}
	}
	if changed == 0 {
		s.checkpoint = s.now
		return Continue, nil
	}

	fi, err := os.Stat(s.cfg.Path)
	if err != nil {
		s.log.Warn("checkpoint skipped; crontab unavailable", logx.Err(err))
		return Continue, nil
	}
	if !s.doc.stamp.matches(fi) {
		s.log.Info("crontab edited outside the daemon; reloading before checkpoint")
		return FileChanged, nil
	}
	st, err := writeDocument(s.cfg.Path, next)
	if err != nil {
		return Continue, fmt.Errorf("checkpoint: %w", err)
	}
	next.stamp = st
	s.doc = next
	s.checkpoint = s.now
	s.log.Debug("checkpoint written", logx.Int("lines", changed))

	if observe {
		if _, err := s.notify.Wait(ctx, s.cfg.SelfWriteTimeout); err != nil {
			return Continue, err
		}
	}
	s.notify.Drain()
	return Continue, nil
}

// shutdown saves last calls and stops every running process.
func (s *Scheduler) shutdown() {
	out, err := s.flush(context.Background(), false)
	if out == FileChanged {
		// Merge with the edited file so neither side is lost.
		if err = s.reload(false); err == nil {
			_, err = s.flush(context.Background(), false)
		}
	}
	if err != nil {
		s.log.Error("final checkpoint failed", logx.Err(err))
	}
	var running []*crontab.Task
	for _, line := range s.order {
		if s.tasks[line].Running() {
			running = append(running, s.tasks[line])
		}
	}
	if len(running) > 0 {
		s.log.Info("stopping running processes", logx.Int("count", len(running)))
	}
	stopAll(running, s.cfg.StopGrace)
}

// Tasks returns the current generation in line order. Only safe to call
// when Run is not executing.
func (s *Scheduler) Tasks() []*crontab.Task {
	out := make([]*crontab.Task, 0, len(s.order))
	for _, line := range s.order {
		out = append(out, s.tasks[line])
	}
	return out
}

func stopAll(tasks []*crontab.Task, grace time.Duration) {
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *crontab.Task) {
			defer wg.Done()
			t.Stop(grace)
		}(t)
	}
	wg.Wait()
}

func sortedLines(tasks map[int]*crontab.Task) []int {
	out := make([]int, 0, len(tasks))
	for line := range tasks {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}
