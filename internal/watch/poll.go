package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	logx "cronus/pkg/logx"
)

// Poller signals a change whenever the file's modification time, size or
// existence differs from the previous stat.
type Poller struct {
	signals

	path  string
	every time.Duration
	log   logx.Logger
	last  fileState
}

func NewPoller(path string, every time.Duration, log logx.Logger) *Poller {
	if every <= 0 {
		every = time.Second
	}
	p := &Poller{
		signals: newSignals(),
		path:    path,
		every:   every,
		log:     log.With(logx.String("comp", "watch"), logx.String("mode", ModePoll)),
	}
	p.last = p.stat()
	return p
}

type fileState struct {
	exists bool
	mod    time.Time
	size   int64
}

func (f fileState) same(o fileState) bool {
	return f.exists == o.exists && f.size == o.size && f.mod.Equal(o.mod)
}

func (p *Poller) stat() fileState {
	fi, err := os.Stat(p.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.log.Debug("stat failed", logx.Err(err))
		}
		return fileState{}
	}
	return fileState{exists: true, mod: fi.ModTime(), size: fi.Size()}
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			cur := p.stat()
			if !cur.same(p.last) {
				p.last = cur
				p.post()
			}
		}
	}
}
