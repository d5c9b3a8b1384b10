package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(data))
}

func TestCopyFileExclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "backup", "dst")
	require.NoError(t, os.WriteFile(src, []byte{0x00, 0xff, 'x'}, 0o644))

	require.NoError(t, CopyFileExclusive(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 'x'}, data)

	err = CopyFileExclusive(src, dst)
	assert.True(t, errors.Is(err, os.ErrExist))
}

func TestWriteFileAtomicSyncsDirectoryAfterRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")

	var synced []string
	orig := syncDir
	t.Cleanup(func() { syncDir = orig })
	syncDir = func(dir string) error {
		// the rename must already be visible when the directory is flushed
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "one", string(data))
		synced = append(synced, dir)
		return orig(dir)
	}

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	assert.Equal(t, []string{filepath.Dir(path)}, synced)

	syncDir = func(string) error { return errors.New("disk gone") }
	err := WriteFileAtomic(path, []byte("two"), 0o644)
	assert.ErrorContains(t, err, "sync directory")
}
