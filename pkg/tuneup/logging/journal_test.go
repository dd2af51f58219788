package logging_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
)

func openJournal(t *testing.T, opts logging.Options) (*logging.Journal, *bytes.Buffer) {
	t.Helper()

	console := &bytes.Buffer{}
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "logs", "tuneup.log")
	}
	opts.Console = console

	j, err := logging.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, console
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_TruncatesExistingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuneup.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	j, _ := openJournal(t, logging.Options{Path: path})
	j.Printf("fresh run")
	require.NoError(t, j.Close())

	content := readLog(t, path)
	assert.NotContains(t, content, "previous run")
	assert.Contains(t, content, "fresh run")
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "tuneup.log")

	j, _ := openJournal(t, logging.Options{Path: path})

	assert.Equal(t, path, j.Path())
	assert.FileExists(t, path)
}

func TestOpen_InvalidLevel(t *testing.T) {
	_, err := logging.Open(logging.Options{
		Path:  filepath.Join(t.TempDir(), "tuneup.log"),
		Level: "loud",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, logging.ErrInvalidLevel))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := logging.Open(logging.Options{})
	assert.Error(t, err)
}

func TestOpen_SecondJournalIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuneup.log")

	first, _ := openJournal(t, logging.Options{Path: path})
	first.Printf("first run")

	_, err := logging.Open(logging.Options{Path: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, logging.ErrJournalBusy))

	// The held log must survive the failed open
	assert.Contains(t, readLog(t, path), "first run")

	require.NoError(t, first.Close())
	second, err := logging.Open(logging.Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestJournal_Section(t *testing.T) {
	j, console := openJournal(t, logging.Options{})

	j.Section("Power Management")
	j.Section("CPU & Memory Tuning")
	require.NoError(t, j.Close())

	content := readLog(t, j.Path())
	assert.Equal(t, "\n[Power Management]\n\n[CPU & Memory Tuning]\n", content)

	assert.Contains(t, console.String(), "[Power Management]")
	assert.Contains(t, console.String(), "[CPU & Memory Tuning]")
}

func TestJournal_PrintfStaysInFile(t *testing.T) {
	j, console := openJournal(t, logging.Options{})

	j.Printf("copied %s to %s", "a", "b")
	require.NoError(t, j.Close())

	content := readLog(t, j.Path())
	assert.Contains(t, content, "copied a to b\n")
	assert.Empty(t, console.String())
}

func TestJournal_Echo(t *testing.T) {
	j, console := openJournal(t, logging.Options{})

	j.Echo("Warning: %s is not supported", "gentoo")
	require.NoError(t, j.Close())

	assert.Contains(t, readLog(t, j.Path()), "Warning: gentoo is not supported")
	assert.Equal(t, "Warning: gentoo is not supported\n", console.String())
}

func TestJournal_Writer(t *testing.T) {
	j, console := openJournal(t, logging.Options{})

	_, err := fmt.Fprint(j.Writer(), "raw command output\n")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, "raw command output\n", readLog(t, j.Path()))
	assert.Empty(t, console.String())

	_, err = j.Writer().Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestJournal_Logger(t *testing.T) {
	t.Run("writes component lines into the log", func(t *testing.T) {
		j, _ := openJournal(t, logging.Options{Level: "info"})

		logger := j.Logger("runner")
		assert.Same(t, logger, j.Logger("runner"))

		logger.Info("command finished", "exit", 3)
		logger.Debug("hidden detail")
		require.NoError(t, j.Close())

		content := readLog(t, j.Path())
		assert.Contains(t, content, "runner")
		assert.Contains(t, content, "command finished")
		assert.Contains(t, content, "exit=3")
		assert.NotContains(t, content, "hidden detail")
	})

	t.Run("verbose mirrors to stderr", func(t *testing.T) {
		stderr := &bytes.Buffer{}
		j, _ := openJournal(t, logging.Options{Level: "debug", Verbose: true, Stderr: stderr})

		j.Logger("probe").With("device", "sda").Debug("rotational check")

		assert.Contains(t, stderr.String(), "rotational check")
		assert.Contains(t, stderr.String(), "device=sda")
	})

	t.Run("quiet by default", func(t *testing.T) {
		stderr := &bytes.Buffer{}
		j, _ := openJournal(t, logging.Options{Stderr: stderr})

		j.Logger("probe").Warn("lspci missing")

		assert.Empty(t, stderr.String())
	})
}

func TestJournal_CloseTwice(t *testing.T) {
	j, _ := openJournal(t, logging.Options{})

	require.NoError(t, j.Close())
	assert.NoError(t, j.Close())
}

func TestJournal_LinesAreTimestamped(t *testing.T) {
	j, _ := openJournal(t, logging.Options{})

	j.Printf("hello")
	require.NoError(t, j.Close())

	line := strings.TrimSpace(readLog(t, j.Path()))
	// 2006-01-02 15:04:05 hello
	require.Len(t, line, len("2006-01-02 15:04:05 hello"))
	assert.True(t, strings.HasSuffix(line, " hello"))
}
