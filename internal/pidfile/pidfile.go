// Package pidfile provides the daemon discovery file: a small file holding
// the daemon's process id, read by other processes to find out whether a
// daemon is already running without having to talk to it.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Status describes what the pidfile says about the daemon
type Status int

const (
	// NotRunning means no live daemon was found
	NotRunning Status = iota
	// Running means a live daemon holds the recorded pid
	Running
	// Unknown means the recorded process could not be probed (for example
	// permission denied); callers must assume a daemon is running
	Unknown
)

// Pidfile represents a PID discovery file
type Pidfile struct {
	path string
}

// New creates a new PID file instance
func New(path string) *Pidfile {
	return &Pidfile{path: path}
}

// Write writes the current PID to the PID file
func (p *Pidfile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create pidfile directory: %w", err)
	}

	content := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Read reads the PID from the PID file
func (p *Pidfile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read pidfile: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in pidfile: %w", err)
	}
	return pid, nil
}

// Remove removes the PID file
func (p *Pidfile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// Path returns the PID file path
func (p *Pidfile) Path() string {
	return p.path
}

// Check probes the recorded process and classifies the daemon state.
//
//   - file missing or unreadable: NotRunning
//   - recorded pid no longer exists: the stale file is deleted, NotRunning
//   - recorded pid exists: Running
//   - probe denied by the OS: Unknown — the file is left alone, since
//     deleting a live daemon's pidfile is worse than one failed connect
func (p *Pidfile) Check() (Status, int) {
	pid, err := p.Read()
	if err != nil {
		return NotRunning, 0
	}

	switch probeProcess(pid) {
	case probeAlive:
		return Running, pid
	case probeDenied:
		return Unknown, pid
	default:
		if err := p.Remove(); err != nil {
			// Couldn't clean up the stale file; still report not running
			return NotRunning, 0
		}
		return NotRunning, 0
	}
}

type probeResult int

const (
	probeDead probeResult = iota
	probeAlive
	probeDenied
)
