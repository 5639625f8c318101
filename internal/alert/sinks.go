package alert

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	logx "cronus/pkg/logx"
)

// Log writes alerts to the daemon log.
type Log struct{ log logx.Logger }

func NewLog(log logx.Logger) *Log { return &Log{log: log.With(logx.String("comp", "alert"))} }

func (*Log) Name() string { return "log" }

func (l *Log) Deliver(_ context.Context, a Alert) error {
	l.log.Warn(a.Text, logx.Time("raised_at", a.At))
	return nil
}

// Desktop runs the platform notifier binary.
type Desktop struct {
	bin  string
	args func(text string) []string
}

// NewDesktop looks for notify-send (or osascript on darwin).
func NewDesktop() (*Desktop, bool) {
	if runtime.GOOS == "darwin" {
		bin, err := exec.LookPath("osascript")
		if err != nil {
			return nil, false
		}
		return &Desktop{bin: bin, args: func(text string) []string {
			return []string{"-e", "display notification " + strconv.Quote(text) + ` with title "cronus"`}
		}}, true
	}
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return nil, false
	}
	return &Desktop{bin: bin, args: func(text string) []string {
		return []string{"cronus", text}
	}}, true
}

func (*Desktop) Name() string { return "desktop" }

func (d *Desktop) Deliver(ctx context.Context, a Alert) error {
	out, err := exec.CommandContext(ctx, d.bin, d.args(a.Text)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", d.bin, err, out)
	}
	return nil
}
