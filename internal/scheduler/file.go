package scheduler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cronus/internal/crontab"
)

// stamp identifies the file version we last read or wrote.
type stamp struct {
	mod  time.Time
	size int64
}

func stampOf(fi os.FileInfo) stamp { return stamp{mod: fi.ModTime(), size: fi.Size()} }

func (s stamp) matches(fi os.FileInfo) bool {
	return fi.ModTime().Equal(s.mod) && fi.Size() == s.size
}

// document is the crontab as lines, kept so a checkpoint can rewrite only
// the lines whose last call changed.
type document struct {
	lines   []string
	newline bool // file ended with a line break
	crlf    bool // lines end with "\r\n"
	stamp   stamp
}

func readDocument(path string) (document, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	doc := parseDocument(string(data))
	doc.stamp = stampOf(fi)
	return doc, nil
}

func parseDocument(text string) document {
	var doc document
	doc.lines, doc.crlf, doc.newline = crontab.SplitLines(text)
	return doc
}

func (d document) String() string {
	eol := "\n"
	if d.crlf {
		eol = "\r\n"
	}
	s := strings.Join(d.lines, eol)
	if d.newline {
		s += eol
	}
	return s
}

// writeDocument rewrites path in place and returns the new stamp.
func writeDocument(path string, d document) (stamp, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return stamp{}, err
	}
	if _, err := f.WriteString(d.String()); err != nil {
		_ = f.Close()
		return stamp{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return stamp{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}
	return stampOf(fi), nil
}
