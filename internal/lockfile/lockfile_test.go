package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	lock := New(path)

	require.NoError(t, lock.TryAcquire())
	assert.True(t, lock.Locked())
	assert.Equal(t, os.Getpid(), lock.PID())
	assert.FileExists(t, path)

	require.NoError(t, lock.Release())
	assert.False(t, lock.Locked())
	assert.NoFileExists(t, path)
}

func TestSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := New(path)
	require.NoError(t, first.TryAcquire())
	defer first.Release()

	second := New(path)
	err := second.TryAcquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestStaleLockFromDeadProcessIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	// Pid 1 exists but pids this large never do
	content := fmt.Sprintf("%d\n%s\n", 1<<22+12345, time.Now().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
	assert.True(t, lock.Locked())
}

func TestOldLockIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	// Live pid but a timestamp well past the staleness horizon
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(),
		time.Now().Add(-2*time.Hour).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
}

func TestCorruptLockfileIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
}

func TestReleaseWithoutAcquire(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))
	assert.NoError(t, lock.Release())
}
