// Package sdnotify reports service state to systemd over the notify socket.
//
// Outside systemd (no NOTIFY_SOCKET) every call is a cheap no-op.
package sdnotify

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"

	"schoolbell/internal/eventbus"
	logx "schoolbell/pkg/logx"
)

// SendFunc delivers one notify message. It reports whether a socket received it.
type SendFunc func(state string) (bool, error)

// WatchdogFunc returns the configured watchdog interval, or zero when disabled.
type WatchdogFunc func() (time.Duration, error)

type Notifier struct {
	send SendFunc
	log  logx.Logger

	// watchdog pings are throttled to half the systemd interval
	wd *rate.Limiter
}

type Option func(*options)

type options struct {
	send     SendFunc
	watchdog WatchdogFunc
}

func WithSend(fn SendFunc) Option { return func(o *options) { o.send = fn } }

func WithWatchdog(fn WatchdogFunc) Option { return func(o *options) { o.watchdog = fn } }

func New(log logx.Logger, opts ...Option) *Notifier {
	o := options{
		send:     func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		watchdog: func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
	for _, fn := range opts {
		fn(&o)
	}
	n := &Notifier{send: o.send, log: log}

	interval, err := o.watchdog()
	switch {
	case err != nil:
		log.Warn("systemd watchdog settings unreadable", logx.Err(err))
	case interval > 0:
		n.wd = rate.NewLimiter(rate.Every(interval/2), 1)
		log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
	}
	return n
}

// WatchdogEnabled reports whether Heartbeat sends anything.
func (n *Notifier) WatchdogEnabled() bool { return n.wd != nil }

func (n *Notifier) Ready() { n.notify(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

func (n *Notifier) Status(msg string) { n.notify("STATUS=" + msg) }

// Heartbeat pings the watchdog, at most twice per interval.
func (n *Notifier) Heartbeat() {
	if n.wd == nil || !n.wd.Allow() {
		return
	}
	n.notify(daemon.SdNotifyWatchdog)
}

// Forward turns bus events into STATUS lines until ctx is done.
func (n *Notifier) Forward(ctx context.Context, bus eventbus.Bus, prefixes ...string) {
	ch, unsub := bus.Subscribe(16, prefixes...)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			n.Status(StatusLine(ev))
		}
	}
}

// StatusLine renders ev for `systemctl status`.
func StatusLine(ev eventbus.Event) string {
	ts := ev.Time.Format("15:04:05")
	if s, ok := ev.Data.(fmt.Stringer); ok {
		return fmt.Sprintf("%s %s at %s", ev.Type, s.String(), ts)
	}
	if ev.Data != nil {
		return fmt.Sprintf("%s %v at %s", ev.Type, ev.Data, ts)
	}
	return fmt.Sprintf("%s at %s", ev.Type, ts)
}

func (n *Notifier) notify(state string) {
	if _, err := n.send(state); err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}
