package scheduler

import (
	"sort"
	"time"

	"cronus/internal/crontab"
)

// Event is one firing instant and the tasks due at it, in line order.
type Event struct {
	At    time.Time
	Lines []int // 0-based line indexes, ascending
	Tasks []*crontab.Task
}

type occurrence struct {
	at   time.Time
	line int
}

// mergeEvents groups per-line occurrence lists into ascending events. Lines
// whose occurrences are the same instant share one event.
func mergeEvents(calls map[int][]time.Time, tasks map[int]*crontab.Task) []Event {
	var all []occurrence
	for line, times := range calls {
		for _, at := range times {
			all = append(all, occurrence{at: at, line: line})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.Before(all[j].at)
		}
		return all[i].line < all[j].line
	})

	var out []Event
	for _, oc := range all {
		if n := len(out); n > 0 && out[n-1].At.Equal(oc.at) {
			if l := out[n-1].Lines; l[len(l)-1] == oc.line {
				continue
			}
			out[n-1].Lines = append(out[n-1].Lines, oc.line)
			out[n-1].Tasks = append(out[n-1].Tasks, tasks[oc.line])
			continue
		}
		out = append(out, Event{At: oc.at, Lines: []int{oc.line}, Tasks: []*crontab.Task{tasks[oc.line]}})
	}
	return out
}
