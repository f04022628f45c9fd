package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecentFilesOrdering(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordOpen("/data/a.xlsx"))
	require.NoError(t, store.RecordOpen("/data/b.xlsx"))
	require.NoError(t, store.RecordOpen("/data/a.xlsx"))

	files, err := store.RecentFiles(10)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/data/a.xlsx", files[0].Path)
	assert.Equal(t, 2, files[0].OpenCount)
	assert.Equal(t, "/data/b.xlsx", files[1].Path)
}

func TestRecentFilesLimit(t *testing.T) {
	store := openTestStore(t)

	for _, path := range []string{"/x/1.xlsx", "/x/2.xlsx", "/x/3.xlsx"} {
		require.NoError(t, store.RecordOpen(path))
	}

	files, err := store.RecentFiles(2)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestOperationCounts(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordOperation("s1", "sheet.list", true))
	require.NoError(t, store.RecordOperation("s1", "range.set-values", false))
	require.NoError(t, store.RecordOperation("s2", "daemon.status", true))

	total, err := store.OperationCount("")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	forS1, err := store.OperationCount("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, forS1)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordOpen("/data/kept.xlsx"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	files, err := reopened.RecentFiles(10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/data/kept.xlsx", files[0].Path)
}
