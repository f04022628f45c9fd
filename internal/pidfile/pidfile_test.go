package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := New(path)

	require.NoError(t, pf.Write())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.Remove())
	assert.NoFileExists(t, path)
}

func TestRemoveMissingFile(t *testing.T) {
	pf := New(filepath.Join(t.TempDir(), "test.pid"))
	assert.NoError(t, pf.Remove())
}

func TestCheckMissingFile(t *testing.T) {
	pf := New(filepath.Join(t.TempDir(), "test.pid"))

	status, pid := pf.Check()
	assert.Equal(t, NotRunning, status)
	assert.Zero(t, pid)
}

func TestCheckCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	status, _ := New(path).Check()
	assert.Equal(t, NotRunning, status)
}

func TestCheckLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := New(path)
	require.NoError(t, pf.Write())

	status, pid := pf.Check()
	assert.Equal(t, Running, status)
	assert.Equal(t, os.Getpid(), pid)
	assert.FileExists(t, path, "a live daemon's pidfile must be left alone")
}

func TestCheckDeadProcessDeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(path,
		[]byte(strconv.Itoa(1<<22+54321)), 0644))

	status, pid := New(path).Check()
	assert.Equal(t, NotRunning, status)
	assert.Zero(t, pid)
	assert.NoFileExists(t, path, "a dead process's pidfile must be cleaned up")
}
