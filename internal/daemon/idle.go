package daemon

import (
	"time"

	"github.com/codefionn/exceld/internal/logger"
)

// IdleMonitor shuts the daemon down after a period with no requests and no
// open sessions. A daemon holding sessions never idles out, even when no
// requests arrive, because open workbooks may carry unsaved state.
type IdleMonitor struct {
	poll         time.Duration
	timeout      time.Duration
	lastActivity func() time.Time
	sessionCount func() int
	onIdle       func()
	log          *logger.Logger
}

// NewIdleMonitor builds an idle monitor. A timeout of zero disables it.
func NewIdleMonitor(poll, timeout time.Duration, lastActivity func() time.Time, sessionCount func() int, onIdle func()) *IdleMonitor {
	return &IdleMonitor{
		poll:         poll,
		timeout:      timeout,
		lastActivity: lastActivity,
		sessionCount: sessionCount,
		onIdle:       onIdle,
		log:          logger.WithPrefix("idle"),
	}
}

// Run polls until stop closes or the idle condition fires. Blocking; run it
// in its own goroutine.
func (m *IdleMonitor) Run(stop <-chan struct{}) {
	if m.timeout <= 0 {
		<-stop
		return
	}

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.sessionCount() > 0 {
				continue
			}
			idle := time.Since(m.lastActivity())
			if idle >= m.timeout {
				m.log.Info("No sessions and no requests for %s", idle.Round(time.Second))
				m.onIdle()
				return
			}
		}
	}
}
