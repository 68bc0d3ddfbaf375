// Package systemd reports daemon state to the service manager through the
// sd_notify protocol. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

// Notifier sends READY, STOPPING, STATUS and WATCHDOG messages.
type Notifier struct {
	log  logx.Logger
	send func(state string) (bool, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		log:  log,
		send: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}

func (n *Notifier) Ready()          { n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping()       { n.notify(daemon.SdNotifyStopping) }
func (n *Notifier) Reloading()      { n.notify(daemon.SdNotifyReloading) }
func (n *Notifier) Status(s string) { n.notify("STATUS=" + s) }
func (n *Notifier) watchdogPing()   { n.notify(daemon.SdNotifyWatchdog) }

// Watchdog pings the service manager at half of WATCHDOG_USEC until ctx is
// done. It returns immediately when the unit has no watchdog configured.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	if interval <= 0 {
		return nil
	}
	return n.pingEvery(ctx, interval/2)
}

func (n *Notifier) pingEvery(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.watchdogPing()
		}
	}
}

// Follow mirrors the dispatch loop into the unit's STATUS line until ctx is done.
func (n *Notifier) Follow(ctx context.Context, bus eventbus.Bus) {
	events, unsubscribe := bus.Subscribe(16, scheduler.EventWaiting, scheduler.EventExecuting)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if s := StatusLine(e); s != "" {
				n.Status(s)
			}
		}
	}
}

// StatusLine renders a scheduler event for systemctl status.
func StatusLine(e eventbus.Event) string {
	ev, ok := e.Data.(scheduler.JobEvent)
	if !ok {
		return ""
	}
	switch e.Type {
	case scheduler.EventWaiting:
		return fmt.Sprintf("next: %s at %s", ev.Job, ev.Due.Format(time.RFC3339))
	case scheduler.EventExecuting:
		return "running: " + ev.Job
	}
	return ""
}
