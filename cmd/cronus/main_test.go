package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronus/internal/storage"
	logx "cronus/pkg/logx"
)

// execute runs the root command with fresh global flag state.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	flagConfig, flagLogLevel = "", ""
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "cronus.yaml", "timezone: UTC\n")
	tab := writeFile(t, dir, "crontab", `# header
* * * 0 30 0 backup #2017-11-16 22:30:00
13 * * * * * bad
* * 1 9 0 0 weekly
`)

	out, errOut, err := execute(t, "check", tab, "--config", cfg, "--from", "2017-11-18 13:33:10", "--next", "3")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	assert.Contains(t, out, "2 tasks, 1 invalid lines")
	assert.Contains(t, out, "2: * * * 0 30 0 backup")
	assert.Contains(t, out, "last call: 2017-11-16 22:30:00")
	assert.Contains(t, out, "missed:    yes")
	assert.Contains(t, out, "2017-11-19 00:30:00")
	assert.Contains(t, out, "2017-11-21 00:30:00")
	assert.NotContains(t, out, "2017-11-22 00:30:00")

	assert.Contains(t, out, "4: * * 1 9 0 0 weekly")
	assert.Contains(t, out, "last call: never")
	assert.Contains(t, out, "2017-11-20 09:00:00")
	assert.Contains(t, out, "2017-12-04 09:00:00")

	assert.Contains(t, errOut, "crontab:3:")
}

func TestCheckValidFileExitsZero(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "cronus.json", `{"timezone":"UTC"}`)
	tab := writeFile(t, dir, "crontab", "* * * * * */15 tick\n")

	out, _, err := execute(t, "check", tab, "-c", cfg, "--from", "2017-11-18T13:33:10Z", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2017-11-18 13:33:15")
	assert.Contains(t, out, "2017-11-18 13:33:30")
	assert.NotContains(t, out, "13:33:45")
}

func TestCheckReadsCRLF(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "cronus.yaml", "timezone: UTC\n")
	tab := writeFile(t, dir, "crontab", "# header\r\n* * * 0 30 0 backup #2017-11-16 22:30:00\r\n")

	out, _, err := execute(t, "check", tab, "--config", cfg, "--from", "2017-11-18 13:33:10", "--next", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "last call: 2017-11-16 22:30:00")
	assert.NotContains(t, out, "last call: never")
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "watch: { mode: carrier-pigeon }\n")

	cases := [][]string{
		{},
		{"a", "b"},
		{"--no-such-flag", "x"},
		{"check", filepath.Join(dir, "crontab"), "--from", "yesterday"},
		{"--config", bad, "x"},
		{"--log-level", "loud", "x"},
		{"history"},
	}
	for _, args := range cases {
		_, _, err := execute(t, args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, 2, exitCode(err), "%v", args)
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	hist := filepath.Join(dir, "history")
	cfg := writeFile(t, dir, "cronus.yaml", "storage: { driver: file, path: "+hist+" }\n")

	st, err := storage.Open(storage.Config{Driver: "file", Path: hist}, logx.Nop())
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.AppendRun(context.Background(), storage.RunEntry{Line: 2, Command: "backup", Started: now.Add(-time.Hour), PID: 4242}))
	require.NoError(t, st.AppendRun(context.Background(), storage.RunEntry{Line: 4, Command: "weekly", Started: now, CatchUp: true, PID: 4243}))
	require.NoError(t, st.AppendRun(context.Background(), storage.RunEntry{Line: 5, Command: "nope", Started: now, Error: "launch failed"}))
	require.NoError(t, st.Close())

	out, _, err := execute(t, "history", "--config", cfg, "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "failed: launch failed")
	assert.Contains(t, out, "catch-up")
	assert.Contains(t, out, "4243")
	assert.NotContains(t, out, "backup")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(&exitError{code: 2}))
}
