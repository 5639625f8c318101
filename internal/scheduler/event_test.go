package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronus/internal/crontab"
)

func TestMergeEventsGroupsEqualInstants(t *testing.T) {
	t.Parallel()
	env := crontab.Env{Location: time.UTC}
	tasks := map[int]*crontab.Task{}
	for i, line := range []string{"* * * * * */15 a", "# skip", "* * * * * */30 b", "* * * * * 0 c"} {
		task, err := crontab.ParseLine(line, env)
		require.NoError(t, err)
		if task != nil {
			tasks[i] = task
		}
	}
	base := time.Date(2017, 11, 18, 13, 33, 0, 0, time.UTC)
	from, to := base.Add(time.Second), base.Add(61*time.Second)
	calls := map[int][]time.Time{}
	for line, task := range tasks {
		calls[line] = task.Calls(from, to)
	}

	events := mergeEvents(calls, tasks)
	require.Len(t, events, 4)

	assert.Equal(t, base.Add(15*time.Second), events[0].At)
	assert.Equal(t, []int{0}, events[0].Lines)

	assert.Equal(t, base.Add(30*time.Second), events[1].At)
	assert.Equal(t, []int{0, 2}, events[1].Lines)
	assert.Equal(t, "a", events[1].Tasks[0].Command())
	assert.Equal(t, "b", events[1].Tasks[1].Command())

	assert.Equal(t, base.Add(45*time.Second), events[2].At)

	assert.Equal(t, base.Add(60*time.Second), events[3].At)
	assert.Equal(t, []int{0, 2, 3}, events[3].Lines)
}

func TestMergeEventsSameInstantDifferentLocation(t *testing.T) {
	t.Parallel()
	env := crontab.Env{Location: time.UTC}
	a, err := crontab.ParseLine("* * * * * * a", env)
	require.NoError(t, err)
	b, err := crontab.ParseLine("* * * * * * b", env)
	require.NoError(t, err)

	at := time.Date(2017, 12, 31, 23, 59, 59, 0, time.UTC)
	local := at.In(time.FixedZone("X", 3600))
	events := mergeEvents(map[int][]time.Time{4: {local}, 1: {at}}, map[int]*crontab.Task{1: a, 4: b})
	require.Len(t, events, 1)
	assert.Equal(t, []int{1, 4}, events[0].Lines)
}

func TestMergeEventsEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, mergeEvents(nil, nil))
}
