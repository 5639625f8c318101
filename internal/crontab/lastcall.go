package crontab

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format is the textual representation a LastCall was read in.
type Format int

const (
	FormatEpoch Format = iota + 1 // #1510867800
	FormatHuman                   // #2017-11-16 22:30:00
)

const humanLayout = "2006-01-02 15:04:05"

func (f Format) String() string {
	switch f {
	case FormatEpoch:
		return "epoch"
	case FormatHuman:
		return "human"
	default:
		return "unknown"
	}
}

// ParseFormat accepts "epoch" or "human".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "epoch":
		return FormatEpoch, nil
	case "human":
		return FormatHuman, nil
	default:
		return 0, fmt.Errorf("unknown last call format %q (want epoch or human)", s)
	}
}

// reLastCall matches the trailing last-call comment of a task line.
var reLastCall = regexp.MustCompile(` #(\d+|\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})$`)

// LastCall is the persisted time of a task's latest execution.
// An unchanged value renders back byte-for-byte.
type LastCall struct {
	Time   time.Time
	Format Format

	raw string
}

// ParseLastCall decodes the comment body (without " #").
func ParseLastCall(s string, loc *time.Location) (LastCall, error) {
	if loc == nil {
		loc = time.Local
	}
	if s == "" {
		return LastCall{}, ErrLastCallFormat
	}
	if strings.Trim(s, "0123456789") == "" {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return LastCall{}, fmt.Errorf("%w: %q: %v", ErrLastCallFormat, s, err)
		}
		return LastCall{Time: time.Unix(sec, 0).In(loc), Format: FormatEpoch, raw: s}, nil
	}
	t, err := time.ParseInLocation(humanLayout, s, loc)
	if err != nil {
		return LastCall{}, fmt.Errorf("%w: %q: %v", ErrLastCallFormat, s, err)
	}
	return LastCall{Time: t, Format: FormatHuman, raw: s}, nil
}

// splitLastCall separates the trailing " #<last call>" from line.
// ok is false when the line carries no such suffix.
func splitLastCall(line string) (source, body string, ok bool) {
	loc := reLastCall.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, "", false
	}
	return line[:loc[0]], line[loc[2]:loc[3]], true
}

// Set records a new time; the format is kept.
func (lc *LastCall) Set(t time.Time) {
	lc.Time = t
	lc.raw = ""
}

func (lc LastCall) String() string {
	if lc.raw != "" {
		return lc.raw
	}
	switch lc.Format {
	case FormatHuman:
		return lc.Time.Format(humanLayout)
	default:
		return strconv.FormatInt(lc.Time.Unix(), 10)
	}
}

// Before compares instants, ignoring the format.
func (lc LastCall) Before(o LastCall) bool { return lc.Time.Before(o.Time) }
