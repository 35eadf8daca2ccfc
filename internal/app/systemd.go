package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "gamenewsbot/pkg/logx"
)

// notifier speaks the sd_notify protocol. Outside systemd every call is a
// no-op.
type notifier interface {
	Notify(state string) (bool, error)
	WatchdogInterval() (time.Duration, error)
}

type systemdNotifier struct{}

func (systemdNotifier) Notify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (systemdNotifier) WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

func (a *App) startSystemd() {
	if ok, err := a.notify.Notify(daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify READY failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify READY sent")
	}

	every, err := a.notify.WatchdogInterval()
	if err != nil {
		a.log.Warn("systemd watchdog config unreadable", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	// Ping at half the deadline; skip pings while unhealthy so systemd
	// restarts a wedged process.
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(every / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if err := a.live(); err != nil {
					a.log.Warn("watchdog ping withheld", logx.Err(err))
					continue
				}
				if _, err := a.notify.Notify(daemon.SdNotifyWatchdog); err != nil {
					a.log.Debug("sd_notify WATCHDOG failed", logx.Err(err))
				}
			}
		}
	})
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", every))
}

func (a *App) notifyStopping() {
	if _, err := a.notify.Notify(daemon.SdNotifyStopping); err != nil {
		a.log.Debug("sd_notify STOPPING failed", logx.Err(err))
	}
}
