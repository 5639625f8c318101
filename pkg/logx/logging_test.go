package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterFieldsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "scheduler"), Int("line", 1))

	log.Debug("hidden")
	log.Warn("launch failed", Int("line", 3), Err(errors.New("boom")), Err(nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "launch failed", rec["message"])
	assert.Equal(t, "scheduler", rec["comp"])
	assert.Equal(t, "boom", rec["err"])
	assert.Contains(t, rec["caller"], "logging_test.go:")
	assert.Contains(t, lines[0], `"line":3`)
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriter(&buf, "debug")
	_ = parent.With(String("a", "1"))
	child := parent.With(String("b", "2"))
	child.Info("x")
	assert.NotContains(t, buf.String(), `"a"`)
	assert.Contains(t, buf.String(), `"b":"2"`)
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Error("dropped")
	assert.False(t, Nop().IsZero())
	Nop().Error("dropped")
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cronus.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.With(String("comp", "app")).Debug("started")
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "started", rec["message"])
	assert.Equal(t, "app", rec["comp"])
	assert.Equal(t, "debug", rec["level"])
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", " INFO ", "warning", "trace"} {
		assert.True(t, ValidLevel(s), s)
	}
	for _, s := range []string{"loud", "fatal"} {
		assert.False(t, ValidLevel(s), s)
	}
}
