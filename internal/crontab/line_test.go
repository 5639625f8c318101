package crontab_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronus/internal/crontab"
)

var now2017 = time.Date(2017, 11, 16, 12, 0, 0, 0, time.UTC)

func TestParseLineCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	tests := []struct {
		line string
		want string
	}{
		{line: "* * * * * * a", want: "a"},
		{line: "\t*   *\t* * * * echo hello world", want: "echo hello world"},
		{line: "* * * * * * b #comment", want: "b"},
		{line: `* * * * * * echo "#c"`, want: `echo "#c"`},
		{line: `* * * * * * echo '#d ' "#e " '# f' "# g"`, want: `echo '#d ' "#e " '# f' "# g"`},
		{line: `* * * * * * echo 1 # comment`, want: `echo 1`},
		{line: `* * * * * * echo 1 #comment "abc"`, want: `echo 1`},
		{line: "1,2 */5 0-2 3 4 5 run.sh #1510871400", want: "run.sh"},
		{line: "* * * * * * run.sh #2017-11-16 22:30:00", want: "run.sh"},
	}
	for _, tt := range tests {
		task := f.task(t, tt.line)
		assert.Equal(t, tt.want, task.Command(), tt.line)
	}
}

func TestParseLineIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	for _, line := range []string{"", "   ", "\t", "# comment", "#* * * * * * echo 1", "   # indented"} {
		task, err := crontab.ParseLine(line, f.env)
		assert.NoError(t, err, line)
		assert.Nil(t, task, line)
	}
}

func TestParseLineErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	tests := []struct {
		line string
		want error
	}{
		{line: "* * * * * echo > /dev/null", want: crontab.ErrLineFormat},
		{line: "* * * * * *", want: crontab.ErrLineFormat},
		{line: "* * * * * * #123", want: crontab.ErrLineFormat},
		{line: "not a task", want: crontab.ErrLineFormat},
		{line: `* * * * * * echo "unterminated`, want: crontab.ErrLineFormat},
		{line: "0 * * * * * cmd", want: crontab.ErrFieldRange},
		{line: "13 * * * * * cmd", want: crontab.ErrFieldRange},
		{line: "*/0 * * * * * cmd", want: crontab.ErrFieldFormat},
		{line: "*/13 * * * * * cmd", want: crontab.ErrFieldRange},
		{line: "* 0 * * * * cmd", want: crontab.ErrFieldRange},
		{line: "* 32 * * * * cmd", want: crontab.ErrFieldRange},
		{line: "* */0 * * * * cmd", want: crontab.ErrFieldFormat},
		{line: "* */32 * * * * cmd", want: crontab.ErrFieldRange},
		{line: "* * 8 * * * cmd", want: crontab.ErrFieldRange},
		{line: "* * */0 * * * cmd", want: crontab.ErrFieldFormat},
		{line: "* * * 24 * * cmd", want: crontab.ErrFieldRange},
		{line: "* * * * 60 * cmd", want: crontab.ErrFieldRange},
		{line: "* * * * * 60 cmd", want: crontab.ErrFieldRange},
		{line: "* * * 5-1 * * cmd", want: crontab.ErrFieldFormat},
		{line: "2 30 * * * * cmd", want: crontab.ErrTaskUnreachable},
		{line: "4 31 * * * * cmd", want: crontab.ErrTaskUnreachable},
		{line: "2 30,31 * * * * cmd", want: crontab.ErrTaskUnreachable},
	}
	for _, tt := range tests {
		task, err := crontab.ParseLine(tt.line, f.env)
		assert.Nil(t, task, tt.line)
		assert.ErrorIs(t, err, tt.want, tt.line)
	}
}

func TestParseLineRareButReachable(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	// Feb 29 that is also a Monday: 2016, 2044, ...
	task := f.task(t, "2 29 1 0 0 0 cmd")
	last, err := task.ExpectedLastCall(at(t, "2017-11-19"))
	require.NoError(t, err)
	assert.Equal(t, at(t, "2016-02-29"), last)
}

func TestParseLineMalformedLastCallIsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	task := f.task(t, "* * * * * * cmd #2017-99-99 00:00:00")
	_, ok := task.LastCall()
	assert.False(t, ok)
	assert.Equal(t, "* * * * * * cmd #2017-99-99 00:00:00", task.Render())
}

func TestParseLines(t *testing.T) {
	t.Parallel()
	f := newFixture(now2017)
	lines := []string{
		"# header",
		"* * * * * * a",
		"",
		"bad line",
		"* * * 0 0 0 b #1510871400",
		"2 30 * * * * c",
	}
	tasks, errs := crontab.ParseLines(lines, f.env)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[1].Command())
	assert.Equal(t, "b", tasks[4].Command())

	require.Len(t, errs, 2)
	assert.Equal(t, 4, errs[0].Line)
	assert.ErrorIs(t, errs[0], crontab.ErrLineFormat)
	assert.Equal(t, 6, errs[1].Line)
	assert.True(t, errors.Is(errs[1], crontab.ErrTaskUnreachable))
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text    string
		want    []string
		crlf    bool
		newline bool
	}{
		{text: "", want: nil},
		{text: "a", want: []string{"a"}},
		{text: "a\n\nb\n", want: []string{"a", "", "b"}, newline: true},
		{text: "\n", want: []string{""}, newline: true},
		{text: "a #1\r\nb\r\n", want: []string{"a #1", "b"}, crlf: true, newline: true},
		{text: "a\r\nb", want: []string{"a", "b"}, crlf: true},
	}
	for _, tt := range tests {
		lines, crlf, newline := crontab.SplitLines(tt.text)
		assert.Equal(t, tt.want, lines, "%q", tt.text)
		assert.Equal(t, tt.crlf, crlf, "%q", tt.text)
		assert.Equal(t, tt.newline, newline, "%q", tt.text)
	}
}
