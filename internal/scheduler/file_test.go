package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"",
		"\n",
		"a",
		"a\n",
		"a\n\nb",
		"# c\n* * * * * * x #1\n\n",
		"\r\n",
		"a\r\nb\r\n",
	} {
		assert.Equal(t, text, parseDocument(text).String(), "%q", text)
	}
	assert.Equal(t, []string{"a", "", "b"}, parseDocument("a\n\nb\n").lines)

	doc := parseDocument("* * * * * * x #1\r\n")
	assert.Equal(t, []string{"* * * * * * x #1"}, doc.lines)
	doc.lines[0] = "* * * * * * x #2"
	assert.Equal(t, "* * * * * * x #2\r\n", doc.String())
}

func TestWriteDocumentInPlace(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "crontab")
	require.NoError(t, os.WriteFile(path, []byte("old contents that are long\n"), 0o600))

	doc, err := readDocument(path)
	require.NoError(t, err)
	doc.lines = []string{"new"}

	st, err := writeDocument(path, doc)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))
	assert.EqualValues(t, 4, st.size)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.matches(fi))
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}
