package crontab

import (
	"fmt"
	"time"
)

// maxBackYears bounds the backward search. Leap years and weekdays repeat
// every 28 years, so a schedule with no match in that span has none at all.
const maxBackYears = 28

// Calls returns every matching instant t with from <= t < to, ascending.
// The lower bound is raised to just after the last call, or after the
// creation time when none was recorded.
//
// The walk descends month, day, hour, minute, second and skips a branch
// whose end lies before from; it stops at the first candidate >= to.
func (t *Task) Calls(from, to time.Time) []time.Time {
	if lo := t.effectiveLastCall().Add(time.Microsecond); lo.After(from) {
		from = lo
	}
	loc := t.env.Location
	var out []time.Time
	for year := from.In(loc).Year(); ; year++ {
		if !time.Date(year, 1, 1, 0, 0, 0, 0, loc).Before(to) {
			return out
		}
		var done bool
		out, done = t.forwardYear(out, year, from, to)
		if done {
			return out
		}
	}
}

func (t *Task) forwardYear(out []time.Time, year int, from, to time.Time) ([]time.Time, bool) {
	loc := t.env.Location
	for _, m := range t.months.values {
		month := time.Month(m)
		if time.Date(year, month+1, 1, 0, 0, 0, 0, loc).Before(from) {
			continue
		}
		dim := daysIn(year, month)
		for _, d := range t.days.values {
			if d > dim {
				break
			}
			day := time.Date(year, month, d, 0, 0, 0, 0, loc)
			if day.AddDate(0, 0, 1).Before(from) || !t.weekdays.Has(int(day.Weekday())) {
				continue
			}
			for _, h := range t.hours.values {
				if time.Date(year, month, d, h+1, 0, 0, 0, loc).Before(from) {
					continue
				}
				for _, mi := range t.minutes.values {
					if time.Date(year, month, d, h, mi+1, 0, 0, loc).Before(from) {
						continue
					}
					for _, s := range t.seconds.values {
						at := time.Date(year, month, d, h, mi, s, 0, loc)
						if !at.Before(to) {
							return out, true
						}
						if !at.Before(from) {
							out = append(out, at)
						}
					}
				}
			}
		}
	}
	return out, false
}

// ExpectedLastCall returns the latest matching instant strictly before now.
func (t *Task) ExpectedLastCall(now time.Time) (time.Time, error) {
	loc := t.env.Location
	start := now.In(loc).Year()
	for year := start; year >= start-maxBackYears; year-- {
		if at, ok := t.backwardYear(year, now); ok {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrTaskUnreachable, t.source)
}

func (t *Task) backwardYear(year int, now time.Time) (time.Time, bool) {
	loc := t.env.Location
	for i := len(t.months.values) - 1; i >= 0; i-- {
		month := time.Month(t.months.values[i])
		if time.Date(year, month, 1, 0, 0, 0, 0, loc).After(now) {
			continue
		}
		dim := daysIn(year, month)
		for j := len(t.days.values) - 1; j >= 0; j-- {
			d := t.days.values[j]
			if d > dim {
				continue
			}
			day := time.Date(year, month, d, 0, 0, 0, 0, loc)
			if day.After(now) || !t.weekdays.Has(int(day.Weekday())) {
				continue
			}
			for k := len(t.hours.values) - 1; k >= 0; k-- {
				h := t.hours.values[k]
				if time.Date(year, month, d, h, 0, 0, 0, loc).After(now) {
					continue
				}
				for l := len(t.minutes.values) - 1; l >= 0; l-- {
					mi := t.minutes.values[l]
					if time.Date(year, month, d, h, mi, 0, 0, loc).After(now) {
						continue
					}
					for n := len(t.seconds.values) - 1; n >= 0; n-- {
						at := time.Date(year, month, d, h, mi, t.seconds.values[n], 0, loc)
						if at.Before(now) {
							return at, true
						}
					}
				}
			}
		}
	}
	return time.Time{}, false
}

// Skipped reports whether an occurrence was missed: the last call (or the
// creation time) is strictly earlier than the expected last call.
func (t *Task) Skipped(now time.Time) (bool, error) {
	exp, err := t.ExpectedLastCall(now)
	if err != nil {
		return false, err
	}
	return t.effectiveLastCall().Before(exp), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
