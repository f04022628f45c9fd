package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0644))
	return path
}

func newTestManager() (*SessionManager, *fakeFactory) {
	factory := &fakeFactory{}
	return NewSessionManager(factory, nil, 5*time.Minute), factory
}

func TestCreateSessionRequiresExistingFile(t *testing.T) {
	manager, _ := newTestManager()

	_, err := manager.CreateSession(filepath.Join(t.TempDir(), "missing.xlsx"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestCreateSessionIDsAreUnique(t *testing.T) {
	manager, _ := newTestManager()
	path := writeTempWorkbook(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := manager.CreateSession(path, 0)
		require.NoError(t, err)
		assert.False(t, seen[session.ID], "duplicate session id %s", session.ID)
		seen[session.ID] = true
	}
	assert.Equal(t, 50, manager.Count())
}

func TestCreateSessionForNewFileRejectsBadExtension(t *testing.T) {
	manager, _ := newTestManager()

	for _, name := range []string{"book.csv", "book.xls", "book", "book.txt"} {
		_, err := manager.CreateSessionForNewFile(filepath.Join(t.TempDir(), name), 0)
		require.Error(t, err, "extension of %s must be rejected", name)
		assert.Contains(t, err.Error(), "not allowed")
	}
}

func TestCreateSessionForNewFileRejectsExistingFile(t *testing.T) {
	manager, _ := newTestManager()
	path := writeTempWorkbook(t)

	_, err := manager.CreateSessionForNewFile(path, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateSessionForNewFileAcceptsAllowedExtensions(t *testing.T) {
	manager, _ := newTestManager()

	for _, name := range []string{"a.xlsx", "b.xlsm", "c.XLSX"} {
		session, err := manager.CreateSessionForNewFile(filepath.Join(t.TempDir(), name), 0)
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
	}
}

func TestCloseSessionSaves(t *testing.T) {
	manager, factory := newTestManager()
	path := writeTempWorkbook(t)

	session, err := manager.CreateSession(path, 0)
	require.NoError(t, err)

	require.NoError(t, manager.CloseSession(session.ID, true))
	wb := factory.last()
	assert.True(t, wb.closed)
	assert.Equal(t, 1, wb.saved)

	// The id is gone afterwards
	_, err = manager.GetSession(session.ID)
	assert.Error(t, err)
}

func TestCloseSessionTwice(t *testing.T) {
	manager, _ := newTestManager()
	path := writeTempWorkbook(t)

	session, err := manager.CreateSession(path, 0)
	require.NoError(t, err)

	require.NoError(t, manager.CloseSession(session.ID, false))
	err = manager.CloseSession(session.ID, false)
	require.Error(t, err)
	assert.Equal(t, fmt.Sprintf("Session '%s' not found", session.ID), err.Error())
}

func TestForceCloseDeadSession(t *testing.T) {
	manager, factory := newTestManager()
	path := writeTempWorkbook(t)

	session, err := manager.CreateSession(path, 0)
	require.NoError(t, err)

	factory.last().kill()
	manager.ForceClose(session.ID)

	_, err = manager.GetSession(session.ID)
	assert.Error(t, err)
	assert.True(t, factory.last().closed)

	// Forcing an already removed session is a no-op
	manager.ForceClose(session.ID)
}

func TestActiveSessionsOrderedByCreation(t *testing.T) {
	manager, _ := newTestManager()
	path := writeTempWorkbook(t)

	first, err := manager.CreateSession(path, 0)
	require.NoError(t, err)
	second, err := manager.CreateSession(path, 0)
	require.NoError(t, err)

	infos := manager.ActiveSessions()
	require.Len(t, infos, 2)
	assert.Equal(t, first.ID, infos[0].SessionID)
	assert.Equal(t, second.ID, infos[1].SessionID)
	assert.Equal(t, path, infos[0].FilePath)
	assert.Equal(t, "fake", infos[0].Backend)
}

func TestShutdownClosesEverything(t *testing.T) {
	manager, factory := newTestManager()
	path := writeTempWorkbook(t)

	for i := 0; i < 3; i++ {
		_, err := manager.CreateSession(path, 0)
		require.NoError(t, err)
	}

	manager.Shutdown()
	assert.Equal(t, 0, manager.Count())
	for _, wb := range factory.opened {
		assert.True(t, wb.closed)
		assert.Equal(t, 0, wb.saved, "shutdown must not save")
	}
}
