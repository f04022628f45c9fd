package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleMonitorFiresWhenIdle(t *testing.T) {
	fired := make(chan struct{})
	last := time.Now().Add(-time.Minute)

	monitor := NewIdleMonitor(
		10*time.Millisecond,
		50*time.Millisecond,
		func() time.Time { return last },
		func() int { return 0 },
		func() { close(fired) },
	)

	stop := make(chan struct{})
	defer close(stop)
	go monitor.Run(stop)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("idle monitor did not fire")
	}
}

func TestIdleMonitorHeldOpenBySessions(t *testing.T) {
	var fired atomic.Bool
	last := time.Now().Add(-time.Hour)

	monitor := NewIdleMonitor(
		10*time.Millisecond,
		20*time.Millisecond,
		func() time.Time { return last },
		func() int { return 1 },
		func() { fired.Store(true) },
	)

	stop := make(chan struct{})
	go monitor.Run(stop)

	time.Sleep(150 * time.Millisecond)
	close(stop)
	assert.False(t, fired.Load(), "monitor must not fire while sessions exist")
}

func TestIdleMonitorResetByActivity(t *testing.T) {
	var fired atomic.Bool
	var last atomic.Int64
	last.Store(time.Now().UnixNano())

	monitor := NewIdleMonitor(
		10*time.Millisecond,
		80*time.Millisecond,
		func() time.Time { return time.Unix(0, last.Load()) },
		func() int { return 0 },
		func() { fired.Store(true) },
	)

	stop := make(chan struct{})
	go monitor.Run(stop)

	// Keep touching activity faster than the timeout
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		last.Store(time.Now().UnixNano())
	}
	close(stop)
	assert.False(t, fired.Load())
}

func TestIdleMonitorDisabled(t *testing.T) {
	monitor := NewIdleMonitor(
		time.Millisecond,
		0,
		func() time.Time { return time.Time{} },
		func() int { return 0 },
		func() { t.Error("disabled monitor fired") },
	)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		monitor.Run(stop)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit on stop")
	}
}
