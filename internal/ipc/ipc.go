// Package ipc derives the per-user communication channel and enforces its
// access policy. Every OS user gets an isolated daemon instance: the socket,
// lockfile and pidfile all live in a directory only that user can enter.
package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Prefix is the fixed channel name prefix shared by all exceld artifacts.
const Prefix = "exceld"

// DetectTimeout is how long a liveness dial waits for the daemon
const DetectTimeout = 1 * time.Second

// RuntimeDir returns the per-user directory holding the socket, pidfile and
// lockfile. The directory name embeds the user identity so two users on the
// same machine never collide.
func RuntimeDir() string {
	base := os.TempDir()
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
			base = xdg
		}
	}
	return filepath.Join(base, fmt.Sprintf("%s-%s", Prefix, userIdentity()))
}

// userIdentity returns a stable identifier for the calling user
func userIdentity() string {
	if runtime.GOOS == "windows" {
		if u := os.Getenv("USERNAME"); u != "" {
			return u
		}
		return "default"
	}
	return strconv.Itoa(os.Getuid())
}

// SocketPath returns the channel endpoint path for the current user
func SocketPath(override string) string {
	if override != "" {
		return filepath.Join(override, Prefix+".sock")
	}
	return filepath.Join(RuntimeDir(), Prefix+".sock")
}

// PidfilePath returns the daemon discovery file path
func PidfilePath(override string) string {
	if override != "" {
		return filepath.Join(override, Prefix+".pid")
	}
	return filepath.Join(RuntimeDir(), Prefix+".pid")
}

// LockfilePath returns the single-instance lock path
func LockfilePath(override string) string {
	if override != "" {
		return filepath.Join(override, Prefix+".lock")
	}
	return filepath.Join(RuntimeDir(), Prefix+".lock")
}

// EnsureRuntimeDir creates the runtime directory restricted to the current
// user (0700). Returns the directory path.
func EnsureRuntimeDir(override string) (string, error) {
	dir := override
	if dir == "" {
		dir = RuntimeDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime directory %s: %w", dir, err)
	}
	// Tighten permissions in case the directory pre-existed with a wider mode
	if err := os.Chmod(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to restrict runtime directory %s: %w", dir, err)
	}
	return dir, nil
}

// Listen creates the server endpoint with owner-only access
func Listen(socketPath string) (net.Listener, error) {
	// Remove a stale socket file left behind by a crashed daemon
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket file: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	return listener, nil
}

// Dial opens a client connection to the daemon socket
func Dial(ctx context.Context, socketPath string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", socketPath, err)
	}
	return conn, nil
}

// Detect reports whether a live daemon is accepting connections on the
// socket. A socket file that exists but refuses connections counts as not
// running.
func Detect(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), DetectTimeout)
	defer cancel()

	conn, err := Dial(ctx, socketPath)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
