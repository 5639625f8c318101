package watch

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "cronus/pkg/logx"
)

// Watcher signals changes of one file using fsnotify on its directory, so
// editors that replace the file by rename are still seen.
type Watcher struct {
	signals

	path     string
	debounce time.Duration
	log      logx.Logger

	startOnce sync.Once
	started   chan struct{}
}

func NewWatcher(path string, debounce time.Duration, log logx.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		signals:  newSignals(),
		path:     path,
		debounce: debounce,
		log:      log.With(logx.String("comp", "watch"), logx.String("mode", ModeFSNotify)),
		started:  make(chan struct{}),
	}
}

// Started is closed once the first watcher is registered.
func (w *Watcher) Started() <-chan struct{} { return w.started }

// Run watches until ctx is done. A broken watcher is recreated with a
// jittered exponential backoff.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}

	// debounce so a burst of events from one save becomes one signal
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.post)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fw.Add(dir); err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			wait := nextWait()
			w.log.Warn("watch init failed", logx.Err(err), logx.String("dir", dir), logx.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
				continue
			}
		}

		backoff = restartBackoffBase
		w.log.Debug("watcher started", logx.String("dir", dir), logx.String("file", file))
		w.startOnce.Do(func() { close(w.started) })

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Missed events: assume the file changed.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					w.log.Warn("watch overflow; signalling change", logx.Err(err))
					debounce()
					continue
				}
				w.log.Warn("watch error", logx.Err(err))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextWait()
		w.log.Warn("watcher stopped; restarting", logx.Duration("backoff", wait))
		// The file may have changed while nobody was looking.
		debounce()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
