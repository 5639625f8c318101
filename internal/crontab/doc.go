// Package crontab models the schedule file: field expressions, last-call
// comments and tasks with their forward/backward occurrence search.
//
// A task line has six whitespace-separated fields followed by a command:
//
//	<months> <days> <weekdays> <hours> <minutes> <seconds> <command>[ #<last call>]
//
// Each field accepts "*", "*/n", "n", "a-b" and comma lists of those. The
// weekday field accepts 0-7 where 7 is another name for Sunday (0). All six
// fields must match for an instant to fire (no cron-style day OR weekday).
//
// The last call is either epoch seconds or "YYYY-MM-DD HH:MM:SS" and is
// written back in whatever format it was read in.
package crontab
