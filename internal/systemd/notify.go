// Package systemd reports service state to the service manager over the notify socket.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness, status and watchdog messages to systemd.
// All methods are no-ops when the process was not started with NOTIFY_SOCKET.
type Notifier struct {
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a notifier that logs delivery failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) send(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "state", state, "error", err)
		return false
	}
	return sent
}

// Ready reports that startup finished and starts the watchdog heartbeat if enabled.
func (n *Notifier) Ready() bool {
	sent := n.send(daemon.SdNotifyReady)
	if sent {
		n.logger.Debug("Notified systemd of readiness")
	}
	n.startWatchdog()
	return sent
}

// Status publishes a free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) bool {
	return n.send("STATUS=" + msg)
}

// Stopping reports shutdown and stops the watchdog heartbeat.
func (n *Notifier) Stopping() bool {
	if n.cancel != nil {
		n.cancel()
		<-n.done
		n.cancel = nil
	}
	return n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 || n.cancel != nil {
		return
	}

	// Ping at half the deadline
	period := interval / 2
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	n.logger.Info("Systemd watchdog enabled", "interval", interval)
	go func() {
		defer close(n.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
}
