package ipc

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsUseOverride(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "exceld.sock"), SocketPath(dir))
	assert.Equal(t, filepath.Join(dir, "exceld.pid"), PidfilePath(dir))
	assert.Equal(t, filepath.Join(dir, "exceld.lock"), LockfilePath(dir))
}

func TestDefaultPathsArePerUser(t *testing.T) {
	socketPath := SocketPath("")
	assert.Contains(t, socketPath, Prefix+"-")
	assert.Equal(t, PidfilePath(""), filepath.Join(RuntimeDir(), "exceld.pid"))
}

func TestEnsureRuntimeDirRestrictsPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := filepath.Join(t.TempDir(), "runtime")

	created, err := EnsureRuntimeDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, created)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestListenAndDial(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "exceld.sock")

	listener, err := Listen(socketPath)
	require.NoError(t, err)
	defer listener.Close()

	if runtime.GOOS != "windows" {
		info, err := os.Stat(socketPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	accepted := make(chan struct{})
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, socketPath)
	require.NoError(t, err)
	conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "exceld.sock")

	first, err := Listen(socketPath)
	require.NoError(t, err)
	first.Close()

	// The socket file may linger after close; Listen must clear it
	second, err := Listen(socketPath)
	require.NoError(t, err)
	second.Close()
}

func TestDetect(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "exceld.sock")
	assert.False(t, Detect(socketPath), "no socket file")

	listener, err := Listen(socketPath)
	require.NoError(t, err)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	assert.True(t, Detect(socketPath))

	listener.Close()
	assert.False(t, Detect(socketPath), "closed listener must not count as running")
}
