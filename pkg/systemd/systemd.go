// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the daemon was not started by systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends state updates to the service manager.
type Notifier struct {
	enabled bool
	// send is daemon.SdNotify; tests swap it.
	send func(unsetEnv bool, state string) (bool, error)

	watchdog time.Duration
	lastPing time.Time
}

// New returns a notifier. When enabled is false every method does nothing.
func New(enabled bool) *Notifier {
	n := &Notifier{enabled: enabled, send: daemon.SdNotify}
	if enabled {
		// Errors here just mean "no watchdog".
		if d, err := daemon.SdWatchdogEnabled(false); err == nil {
			n.watchdog = d
		}
	}
	return n
}

// Ready reports READY=1 with a status line.
func (n *Notifier) Ready(status string) error {
	return n.notify(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Stopping reports STOPPING=1.
func (n *Notifier) Stopping() error { return n.notify(daemon.SdNotifyStopping) }

// Status updates the free-form status line shown by systemctl.
func (n *Notifier) Status(status string) error { return n.notify("STATUS=" + status) }

// WatchdogInterval is WATCHDOG_USEC, or 0 when no watchdog is configured.
func (n *Notifier) WatchdogInterval() time.Duration { return n.watchdog }

// Ping sends WATCHDOG=1 at most twice per watchdog interval. It is safe to
// call on every scheduler heartbeat.
func (n *Notifier) Ping(now time.Time) error {
	if n.watchdog <= 0 {
		return nil
	}
	if !n.lastPing.IsZero() && now.Sub(n.lastPing) < n.watchdog/2 {
		return nil
	}
	n.lastPing = now
	return n.notify(daemon.SdNotifyWatchdog)
}

func (n *Notifier) notify(state string) error {
	if n == nil || !n.enabled {
		return nil
	}
	_, err := n.send(false, state)
	return err
}
