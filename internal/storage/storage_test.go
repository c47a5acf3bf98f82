package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision_CreatesParents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logPath := filepath.Join(root, "logs", "nested", "clicks.log")
	statePath := filepath.Join(root, "state", "state.db")

	require.NoError(t, Provision(logPath, statePath, ""))

	for _, dir := range []string{filepath.Dir(logPath), filepath.Dir(statePath)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "probe files must be removed")
	}

	// the files themselves are left to their owners
	_, err := os.Stat(logPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProvision_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "clicks.log")
	require.NoError(t, Provision(path))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	require.NoError(t, Provision(path, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestProvision_ParentIsFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := filepath.Join(root, "data")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := Provision(filepath.Join(blocker, "clicks.log"), filepath.Join(root, "ok", "state.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), blocker)

	// the healthy path is still provisioned
	_, statErr := os.Stat(filepath.Join(root, "ok"))
	assert.NoError(t, statErr)
}

func TestProbe_ReadOnlyDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	assert.Error(t, Probe(dir))
}
