package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildProfile creates a small browser-profile-like tree under dir.
func buildProfile(t *testing.T, dir string) {
	t.Helper()

	files := map[string]string{
		"profiles.ini":                "[Profile0]\nPath=abc.default\n",
		"abc.default/prefs.js":        `user_pref("gfx.webrender.all", true);`,
		"abc.default/places.sqlite":   "sqlite-bytes",
		"abc.default/cache2/entries1": "x",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	require.NoError(t, os.Symlink("abc.default", filepath.Join(dir, "current")))
}

func TestCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "firefox")
	buildProfile(t, src)
	dst := filepath.Join(t.TempDir(), "copies", "firefox-backup")

	stats, err := CopyTree(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Files)
	assert.Equal(t, int64(2), stats.Dirs)
	assert.Equal(t, int64(1), stats.Links)
	assert.Empty(t, stats.Errors)

	data, err := os.ReadFile(filepath.Join(dst, "abc.default", "prefs.js"))
	require.NoError(t, err)
	assert.Equal(t, `user_pref("gfx.webrender.all", true);`, string(data))

	info, err := os.Stat(filepath.Join(dst, "profiles.ini"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "current"))
	require.NoError(t, err)
	assert.Equal(t, "abc.default", link)
}

func TestCopyTree_KeepsDirectoryModes(t *testing.T) {
	src := filepath.Join(t.TempDir(), "firefox")
	require.NoError(t, os.MkdirAll(src, 0o755))

	// Several files per directory make it likely a file copy creates its
	// parent before the directory entry itself is handled.
	modes := map[string]os.FileMode{
		"abc.default":         0o700,
		"abc.default/storage": 0o750,
		"shared":              0o755,
	}
	for _, rel := range []string{"abc.default", "abc.default/storage", "shared"} {
		dir := filepath.Join(src, rel)
		require.NoError(t, os.Mkdir(dir, 0o700))
		for i := 0; i < 16; i++ {
			name := filepath.Join(dir, "file"+string(rune('a'+i)))
			require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
		}
	}
	for rel, mode := range modes {
		require.NoError(t, os.Chmod(filepath.Join(src, rel), mode))
	}
	require.NoError(t, os.Chmod(src, 0o700))

	dst := filepath.Join(t.TempDir(), "firefox-backup")
	stats, err := CopyTree(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Empty(t, stats.Errors)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm(), "root")

	for rel, mode := range modes {
		info, err := os.Stat(filepath.Join(dst, rel))
		require.NoError(t, err)
		assert.Equal(t, mode, info.Mode().Perm(), rel)
	}
}

func TestCopyTree_Errors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		_, err := CopyTree(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
		assert.Error(t, err)
	})

	t.Run("source is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		_, err := CopyTree(context.Background(), file, filepath.Join(t.TempDir(), "dst"))
		assert.Error(t, err)
	})

	t.Run("destination exists", func(t *testing.T) {
		src := t.TempDir()
		dst := t.TempDir()

		_, err := CopyTree(context.Background(), src, dst)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "src")
		buildProfile(t, src)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := CopyTree(ctx, src, filepath.Join(t.TempDir(), "dst"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReplaceTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "chromium")
	buildProfile(t, src)
	workspace := t.TempDir()
	dst := filepath.Join(workspace, "browser-configs", "chromium-backup")
	tmp := filepath.Join(workspace, "tmp")

	// A stale copy from a previous run is replaced
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale"), []byte("old"), 0o644))

	stats, err := ReplaceTree(context.Background(), src, dst, tmp)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Files)

	assert.NoFileExists(t, filepath.Join(dst, "stale"))
	assert.FileExists(t, filepath.Join(dst, "profiles.ini"))

	// Staging area is cleaned up
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaceTree_FailureKeepsPreviousCopy(t *testing.T) {
	workspace := t.TempDir()
	dst := filepath.Join(workspace, "browser-configs", "brave-browser-backup")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "keep"), []byte("old"), 0o644))

	_, err := ReplaceTree(context.Background(), filepath.Join(workspace, "missing"), dst, filepath.Join(workspace, "tmp"))
	require.Error(t, err)

	assert.FileExists(t, filepath.Join(dst, "keep"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sysctl.conf")
	require.NoError(t, os.WriteFile(src, []byte("vm.swappiness=60\n"), 0o644))
	dst := filepath.Join(dir, "backups", "sysctl.conf.bak")

	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len("vm.swappiness=60\n")), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "vm.swappiness=60\n", string(data))

	_, err = CopyFile(filepath.Join(dir, "missing"), dst)
	assert.Error(t, err)
}
