//go:build !windows

package pidfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// probeProcess checks whether the given pid refers to a live process.
// Signal 0 performs permission and existence checks without delivering
// anything.
func probeProcess(pid int) probeResult {
	if pid <= 0 {
		return probeDead
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		// On unix FindProcess always succeeds; treat failure as dead
		return probeDead
	}

	err = proc.Signal(unix.Signal(0))
	if err == nil {
		return probeAlive
	}
	if errors.Is(err, unix.EPERM) {
		// Process exists but belongs to someone we can't signal
		return probeDenied
	}
	return probeDead
}
