// Package lockfile enforces single-instance-per-user semantics for the
// daemon. Failing to take the lock is the expected signal that another
// instance owns the channel; callers branch on ErrLocked rather than treat
// it as a fault.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked indicates another live daemon already holds the lock
var ErrLocked = errors.New("daemon is already running")

// Lockfile represents a file-based lock
type Lockfile struct {
	path   string
	file   *os.File
	pid    int
	locked bool
}

// New creates a new lockfile instance
func New(path string) *Lockfile {
	return &Lockfile{path: path}
}

// TryAcquire attempts to acquire the lock. A lock abandoned by a crashed
// holder (dead pid, or older than an hour) is taken over.
func (l *Lockfile) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lockfile: %w", err)
		}

		stale, reason, checkErr := l.checkStale()
		if checkErr != nil {
			return fmt.Errorf("failed to check lockfile staleness: %w", checkErr)
		}
		if !stale {
			return fmt.Errorf("%w: %s", ErrLocked, reason)
		}

		// Abandoned lock: remove and retry once
		if removeErr := os.Remove(l.path); removeErr != nil {
			return fmt.Errorf("failed to remove stale lockfile (%s): %w", reason, removeErr)
		}
		file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("failed to create lockfile after removing stale one: %w", err)
		}
	}

	l.file = file
	l.pid = os.Getpid()
	l.locked = true

	content := fmt.Sprintf("%d\n%s\n", l.pid, time.Now().Format(time.RFC3339))
	if _, err := l.file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write to lockfile: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}

	return nil
}

// checkStale checks if the lockfile is stale (holder no longer running)
func (l *Lockfile) checkStale() (bool, string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		// Can't read the lockfile, assume it's corrupted and stale
		return true, "cannot read lockfile", nil
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 1 {
		return true, "invalid lockfile format", nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return true, "invalid PID in lockfile", nil
	}

	running, reason := isProcessRunning(pid)
	if !running {
		return true, reason, nil
	}

	// Stale after an hour regardless, in case the pid was reused
	if len(lines) >= 2 {
		timestamp, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
		if err == nil && time.Since(timestamp) > time.Hour {
			return true, "lockfile is older than 1 hour", nil
		}
	}

	return false, fmt.Sprintf("process with PID %d is running", pid), nil
}

// Release releases the lock and removes the lockfile
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	var err error
	if l.file != nil {
		if closeErr := l.file.Close(); closeErr != nil {
			err = closeErr
		}
		l.file = nil
	}

	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		if err != nil {
			err = fmt.Errorf("%v; failed to remove lockfile: %w", err, removeErr)
		} else {
			err = fmt.Errorf("failed to remove lockfile: %w", removeErr)
		}
	}

	l.locked = false
	return err
}

// PID returns the PID that acquired the lock
func (l *Lockfile) PID() int {
	return l.pid
}

// Locked returns true if the lock is held
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lockfile path
func (l *Lockfile) Path() string {
	return l.path
}
