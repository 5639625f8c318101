package crontab

import (
	"regexp"
	"strings"

	logx "cronus/pkg/logx"
)

// Line grammar:
//
//	<months> <days> <weekdays> <hours> <minutes> <seconds> <command>[#comment][ #<last call>]
//
// Quoted spans of the command may contain '#'.
const (
	sep       = `[ \t]`
	fieldExpr = `(?:\*|\*/\d+|\d+|\d+-\d+)`
	field     = `(` + fieldExpr + `(?:,` + fieldExpr + `)*)`
	command   = `((?:'[^']*'|"[^"]*"|[^#'"])+)`
	comment   = `(#.*)?`
)

var (
	reTask   = regexp.MustCompile(`^` + sep + `*` + strings.Repeat(field+sep+`+`, 6) + command + comment + `$`)
	reIgnore = regexp.MustCompile(`^` + sep + `*(?:#.*)?$`)
)

// ParseLine builds a Task from one crontab line. Blank and comment lines
// yield (nil, nil).
func ParseLine(text string, env Env) (*Task, error) {
	if reIgnore.MatchString(text) {
		return nil, nil
	}
	g := reTask.FindStringSubmatch(text)
	if g == nil {
		return nil, ErrLineFormat
	}
	cmd := strings.TrimSpace(g[7])
	if cmd == "" {
		return nil, ErrLineFormat
	}

	env = env.WithDefaults()
	source, body, ok := splitLastCall(text)
	var lc *LastCall
	if ok {
		v, err := ParseLastCall(body, env.Location)
		if err != nil {
			// Lenient: scheduling falls back to the creation time.
			env.Log.Warn("ignoring last call", logx.String("line", text), logx.Err(err))
		} else {
			lc = &v
		}
	}
	return newTask(text, source, [6]string{g[1], g[2], g[3], g[4], g[5], g[6]}, cmd, lc, env)
}

// SplitLines breaks file text into lines. A final line break does not start
// another line. When the text uses "\r\n" endings the "\r" is stripped from
// every line.
func SplitLines(text string) (lines []string, crlf, newline bool) {
	crlf = strings.Contains(text, "\r\n")
	if strings.HasSuffix(text, "\n") {
		newline = true
		text = strings.TrimSuffix(text, "\n")
	}
	if text != "" || newline {
		lines = strings.Split(text, "\n")
	}
	if crlf {
		for i, l := range lines {
			lines[i] = strings.TrimSuffix(l, "\r")
		}
	}
	return lines, crlf, newline
}

// ParseLines parses a whole file. Tasks are keyed by 0-based line index;
// failures are returned per line and never abort the rest of the file.
func ParseLines(lines []string, env Env) (map[int]*Task, []*LineError) {
	tasks := make(map[int]*Task, len(lines))
	var errs []*LineError
	for i, text := range lines {
		t, err := ParseLine(text, env)
		if err != nil {
			errs = append(errs, &LineError{Line: i + 1, Text: text, Err: err})
			continue
		}
		if t != nil {
			tasks[i] = t
		}
	}
	return tasks, errs
}
