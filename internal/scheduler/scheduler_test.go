package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronus/internal/crontab"
	"cronus/internal/crontab/crontabtest"
	logx "cronus/pkg/logx"
)

// fakeNotifier advances the fake clock by the full timeout on every wait
// and reports a change whenever the file content differs from what it saw
// last. It cancels the run once the clock reaches stopAt.
type fakeNotifier struct {
	path   string
	clock  *crontabtest.Clock
	stopAt time.Time
	cancel context.CancelFunc

	// mute hides content changes, like an editor the watcher missed.
	mute bool
	// onWait runs after each clock advance.
	onWait func(now time.Time)

	seen string
}

func (n *fakeNotifier) content() string {
	data, err := os.ReadFile(n.path)
	if err != nil {
		return "\x00missing"
	}
	return string(data)
}

func (n *fakeNotifier) changed() bool {
	c := n.content()
	if c == n.seen {
		return false
	}
	n.seen = c
	return !n.mute
}

func (n *fakeNotifier) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if n.changed() {
		return true, nil
	}
	now := n.clock.Advance(timeout)
	if n.onWait != nil {
		n.onWait(now)
	}
	if !now.Before(n.stopAt) {
		n.cancel()
		return false, ctx.Err()
	}
	return n.changed(), nil
}

func (n *fakeNotifier) Drain() { n.seen = n.content() }

type harness struct {
	t          *testing.T
	path       string
	clock      *crontabtest.Clock
	runner     *crontabtest.Runner
	alerts     *crontabtest.Alerts
	notify     *fakeNotifier
	logs       bytes.Buffer
	dispatches []Dispatch
	ready      int
	heartbeats int
}

func newHarness(t *testing.T, content string, start time.Time) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crontab")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	clock := crontabtest.NewClock(start)
	h := &harness{
		t:      t,
		path:   path,
		clock:  clock,
		runner: &crontabtest.Runner{Clock: clock},
		alerts: &crontabtest.Alerts{},
	}
	h.notify = &fakeNotifier{path: path, clock: clock}
	h.notify.Drain()
	return h
}

func (h *harness) run(stopAt time.Time) error {
	h.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.notify.stopAt = stopAt
	h.notify.cancel = cancel

	env := crontab.Env{
		Clock:    h.clock,
		Runner:   h.runner,
		Alerts:   h.alerts,
		Location: time.UTC,
		Log:      logx.NewWriter(&h.logs, "debug"),
	}
	s, err := New(Config{Path: h.path}, env, h.notify, Hooks{
		Ready:      func() { h.ready++ },
		Heartbeat:  func() { h.heartbeats++ },
		Dispatched: func(d Dispatch) { h.dispatches = append(h.dispatches, d) },
	})
	require.NoError(h.t, err)
	return s.Run(ctx)
}

func (h *harness) launches() []string {
	var out []string
	for _, l := range h.runner.Launches() {
		out = append(out, l.At.Format("15:04:05")+" "+l.Command)
	}
	return out
}

func (h *harness) file() string {
	data, err := os.ReadFile(h.path)
	require.NoError(h.t, err)
	return string(data)
}

func (h *harness) write(content string) {
	require.NoError(h.t, os.WriteFile(h.path, []byte(content), 0o644))
}

func epoch(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

var day = time.Date(2017, 11, 18, 0, 0, 0, 0, time.UTC)

func clockAt(hms string) time.Time {
	t, err := time.Parse("15:04:05", hms)
	if err != nil {
		panic(err)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
}

func TestRunFifteenSecondTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 cmd\n", clockAt("13:33:02"))

	require.NoError(t, h.run(clockAt("13:34:01")))

	assert.Equal(t, []string{"13:33:15 cmd", "13:33:30 cmd", "13:33:45 cmd", "13:34:00 cmd"}, h.launches())
	assert.Equal(t, "* * * * * */15 cmd #"+epoch(clockAt("13:34:00"))+"\n", h.file())
	assert.Equal(t, 1, h.ready)
	assert.Positive(t, h.heartbeats)
	require.Len(t, h.dispatches, 4)
	assert.Equal(t, 1, h.dispatches[0].Line)
	assert.Equal(t, clockAt("13:33:15"), h.dispatches[0].Scheduled)
	assert.False(t, h.dispatches[0].CatchUp)
}

func (h *harness) logged(msg string) int {
	return strings.Count(h.logs.String(), `"message":"`+msg+`"`)
}

func TestRunCheckpointIsNotAnEdit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 cmd\n", clockAt("13:33:02"))

	require.NoError(t, h.run(clockAt("13:34:01")))

	assert.GreaterOrEqual(t, h.logged("checkpoint written"), 3)
	assert.Equal(t, 1, h.logged("crontab loaded"), "only the initial read")
	assert.Zero(t, h.logged("crontab changed; reloading"))
	assert.Len(t, h.launches(), 4)
}

func TestRunMergedEventKeepsLineOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */30 b\n* * * * * */15 a\n", clockAt("13:33:02"))

	require.NoError(t, h.run(clockAt("13:33:31")))

	assert.Equal(t, []string{"13:33:15 a", "13:33:30 b", "13:33:30 a"}, h.launches())
}

func TestRunCatchesUpSkippedTaskOnce(t *testing.T) {
	t.Parallel()
	start := time.Date(2017, 11, 19, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, "* * * 22 30 0 nightly #2017-11-17 22:30:00\n* * * * * 0 minutely\n", start)

	require.NoError(t, h.run(start.Add(30*time.Second)))

	assert.Equal(t, []string{"10:00:00 nightly"}, h.launches())
	require.Len(t, h.dispatches, 1)
	assert.True(t, h.dispatches[0].CatchUp)
	assert.Equal(t, time.Date(2017, 11, 18, 22, 30, 0, 0, time.UTC), h.dispatches[0].Scheduled)
	assert.Equal(t, "* * * 22 30 0 nightly #2017-11-19 10:00:00\n* * * * * 0 minutely\n", h.file())
}

func TestRunReloadMigratesLastCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 cmd\n", clockAt("13:33:02"))
	edited := false
	h.notify.onWait = func(now time.Time) {
		if edited || now.Before(clockAt("13:33:20")) {
			return
		}
		edited = true
		// The checkpoint before :30 already stored :15; keep that and add a task.
		h.write("# header\n* * * * * */15 cmd #" + epoch(clockAt("13:33:15")) + "\n* * * * * */20 other\n")
	}

	require.NoError(t, h.run(clockAt("13:33:50")))

	// other is created by the reload at 13:33:20 and so first fires at :40.
	assert.Equal(t, []string{
		"13:33:15 cmd",
		"13:33:30 cmd",
		"13:33:40 other",
		"13:33:45 cmd",
	}, h.launches())
	assert.Equal(t, "# header\n"+
		"* * * * * */15 cmd #"+epoch(clockAt("13:33:45"))+"\n"+
		"* * * * * */20 other #"+epoch(clockAt("13:33:40"))+"\n", h.file())
}

func TestRunSilentEditIsNotOverwritten(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 cmd\n", clockAt("13:33:02"))
	h.notify.mute = true
	edited := false
	h.notify.onWait = func(now time.Time) {
		if edited || now.Before(clockAt("13:33:20")) {
			return
		}
		edited = true
		h.write("* * * * * */15 cmd #" + epoch(clockAt("13:33:15")) + "\n* * * * * */20 other\n")
	}

	require.NoError(t, h.run(clockAt("13:33:50")))

	assert.Equal(t, []string{
		"13:33:15 cmd",
		"13:33:30 cmd",
		"13:33:40 other",
		"13:33:45 cmd",
	}, h.launches())
	assert.True(t, strings.HasSuffix(h.file(), "* * * * * */20 other #"+epoch(clockAt("13:33:40"))+"\n"), h.file())
}

func TestRunWakeUpAfterSuspend(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * 0 0 hourly\n", clockAt("13:33:02"))
	slept := false
	h.notify.onWait = func(now time.Time) {
		if !slept && !now.Before(clockAt("13:40:00")) {
			slept = true
			h.clock.Set(clockAt("15:20:00"))
		}
	}

	require.NoError(t, h.run(clockAt("15:20:30")))

	assert.Equal(t, []string{"15:20:00 hourly"}, h.launches())
	require.Len(t, h.dispatches, 1)
	assert.True(t, h.dispatches[0].CatchUp)
	assert.Equal(t, clockAt("15:00:00"), h.dispatches[0].Scheduled)
}

func TestRunShortDelayStillFires(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * 0 0 hourly\n", clockAt("13:58:00"))
	late := false
	h.notify.onWait = func(now time.Time) {
		if !late && !now.Before(clockAt("13:59:50")) {
			late = true
			h.clock.Set(clockAt("14:03:00"))
		}
	}

	require.NoError(t, h.run(clockAt("14:03:10")))

	assert.Equal(t, []string{"14:03:00 hourly"}, h.launches())
	require.Len(t, h.dispatches, 1)
	assert.False(t, h.dispatches[0].CatchUp)
	assert.Equal(t, clockAt("14:00:00"), h.dispatches[0].Scheduled)
}

func TestRunReadFailureKeepsTasks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 cmd\n", clockAt("13:33:02"))
	removed := false
	h.notify.onWait = func(now time.Time) {
		if !removed && !now.Before(clockAt("13:33:20")) {
			removed = true
			require.NoError(t, os.Remove(h.path))
		}
	}

	require.NoError(t, h.run(clockAt("13:33:50")))

	assert.Equal(t, []string{"13:33:15 cmd", "13:33:30 cmd", "13:33:45 cmd"}, h.launches())
	msgs := h.alerts.Messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "cannot read")
}

func TestRunFirstReadFailureIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", clockAt("13:33:02"))
	require.NoError(t, os.Remove(h.path))
	err := h.run(clockAt("13:34:00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, h.ready)
}

func TestRunStopsProcessesOfRemovedTasks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 long\n", clockAt("13:33:02"))
	h.runner.Hold = true
	edited := false
	h.notify.onWait = func(now time.Time) {
		if !edited && !now.Before(clockAt("13:33:20")) {
			edited = true
			h.write("* * * * * */15 other\n")
		}
	}

	require.NoError(t, h.run(clockAt("13:33:35")))

	launches := h.runner.Launches()
	require.Len(t, launches, 2)
	assert.Equal(t, "long", launches[0].Command)
	assert.True(t, launches[0].Proc.Terminated())
	assert.Equal(t, "other", launches[1].Command)
	assert.True(t, launches[1].Proc.Terminated(), "stopped at shutdown")
}

func TestRunStillRunningTaskIsNotRelaunched(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "* * * * * */15 long\n", clockAt("13:33:02"))
	h.runner.Hold = true

	require.NoError(t, h.run(clockAt("13:34:01")))

	assert.Equal(t, []string{"13:33:15 long"}, h.launches())
	require.Len(t, h.runner.Launches(), 1)
	assert.True(t, h.runner.Launches()[0].Proc.Terminated())
}

func TestRunInvalidLinesAreAlerted(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "# tasks\nbogus\n2 30 * * * * never\n* * * * * */15 cmd", clockAt("13:33:02"))

	require.NoError(t, h.run(clockAt("13:33:16")))

	msgs := h.alerts.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "crontab:2:")
	assert.Contains(t, msgs[1], "crontab:3:")
	assert.Equal(t, []string{"13:33:15 cmd"}, h.launches())
	assert.Equal(t, "# tasks\nbogus\n2 30 * * * * never\n* * * * * */15 cmd #"+epoch(clockAt("13:33:15")), h.file())
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, crontab.Env{}, &fakeNotifier{}, Hooks{})
	assert.Error(t, err)
	_, err = New(Config{Path: "x"}, crontab.Env{}, nil, Hooks{})
	assert.Error(t, err)
}
