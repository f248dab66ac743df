package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "work")
	ws, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root())
	assert.DirExists(t, root)
}

func TestNewDefaultsToTempDir(t *testing.T) {
	ws, err := New("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ws.Root(), os.TempDir()))
}

func TestScanDirLayout(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)

	dir, err := ws.ScanDir("abc123")
	require.NoError(t, err)
	assert.DirExists(t, dir.Path())
	assert.Contains(t, dir.Path(), "scan-abc123")

	outPath := dir.UnitOutputPath("u1")
	assert.Equal(t, filepath.Join(dir.Path(), "unit-u1.xml"), outPath)
}

func TestWriteHostList(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	dir, err := ws.ScanDir("s1")
	require.NoError(t, err)

	path, err := dir.WriteHostList("u1", []string{"10.0.0.1", "10.0.0.2"})
	require.NoError(t, err)

	data, err := os.ReadFile(path) //nolint:gosec // test-owned path
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1\n10.0.0.2\n", string(data))

	require.NoError(t, dir.Remove(path))
	assert.NoFileExists(t, path)

	// Removing again is not an error.
	assert.NoError(t, dir.Remove(path))
}

func TestCleanupRemovesEverything(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	dir, err := ws.ScanDir("s1")
	require.NoError(t, err)

	_, err = dir.WriteHostList("u1", []string{"10.0.0.1"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dir.UnitOutputPath("u1"), []byte("<run/>"), 0o600))

	require.NoError(t, dir.Cleanup())
	assert.NoDirExists(t, dir.Path())
}
