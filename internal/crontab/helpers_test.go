package crontab_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronus/internal/crontab"
	"cronus/internal/crontab/crontabtest"
)

type fixture struct {
	clock  *crontabtest.Clock
	runner *crontabtest.Runner
	alerts *crontabtest.Alerts
	env    crontab.Env
}

func newFixture(now time.Time) *fixture {
	clock := crontabtest.NewClock(now)
	f := &fixture{
		clock:  clock,
		runner: &crontabtest.Runner{Clock: clock},
		alerts: &crontabtest.Alerts{},
	}
	f.env = crontab.Env{
		Clock:    f.clock,
		Runner:   f.runner,
		Alerts:   f.alerts,
		Location: time.UTC,
	}
	return f
}

func (f *fixture) task(t *testing.T, line string) *crontab.Task {
	t.Helper()
	task, err := crontab.ParseLine(line, f.env)
	require.NoError(t, err, line)
	require.NotNil(t, task, line)
	return task
}

// at parses "2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05" or with
// fractional seconds, in UTC.
func at(t *testing.T, s string) time.Time {
	t.Helper()
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return v
		}
	}
	t.Fatalf("bad time %q", s)
	return time.Time{}
}
