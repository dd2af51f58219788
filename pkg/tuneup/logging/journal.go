// Package logging provides the run journal for tuneup.
//
// A journal is a single log file truncated when a run starts. Actions write
// section headers, free-text lines and raw command output into it, and
// component loggers add timestamped level lines to the same file. Section
// headers are mirrored to the console so the operator can follow progress.
//
// Basic usage:
//
//	j, err := logging.Open(logging.Options{Path: paths.LogFile})
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	j.Section("Power Management")
//	j.Printf("tlp already installed")
//	j.Logger("runner").Info("command finished", "exit", 0)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// ErrJournalBusy is returned when another process holds the log file.
var ErrJournalBusy = errors.New("log file is in use by another tuneup run")

// lineTimeFormat prefixes every free-text journal line.
const lineTimeFormat = "2006-01-02 15:04:05"

var sectionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39"))

// Options configures a journal.
type Options struct {
	// Path is the log file. Parent directories are created.
	Path string

	// Level is the minimum level for component loggers (debug, info, warn, error).
	Level string

	// Console receives section headers and echoed lines. Nil means os.Stdout.
	Console io.Writer

	// Verbose mirrors component log lines to Stderr.
	Verbose bool

	// Stderr receives mirrored component log lines. Nil means os.Stderr.
	Stderr io.Writer
}

// Journal is the append-only run log.
// It is safe for concurrent use; command output copied by exec goroutines
// and component log lines never interleave mid-line.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	level   Level
	console io.Writer
	stderr  io.Writer
	verbose bool
	now     func() time.Time
	loggers map[string]*Logger
	closed  bool
}

// Open creates or truncates the log file at opts.Path and takes an
// exclusive lock on it for the lifetime of the journal.
func Open(opts Options) (*Journal, error) {
	if opts.Path == "" {
		return nil, errors.New("log path is required")
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	// Lock before truncating so a concurrent run keeps its log intact.
	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrJournalBusy, opts.Path)
		}
		return nil, fmt.Errorf("locking log file: %w", err)
	}

	if err := file.Truncate(0); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("truncating log file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seeking log file: %w", err)
	}

	j := &Journal{
		file:    file,
		path:    opts.Path,
		level:   level,
		console: opts.Console,
		stderr:  opts.Stderr,
		verbose: opts.Verbose,
		now:     time.Now,
		loggers: make(map[string]*Logger),
	}
	if j.console == nil {
		j.console = os.Stdout
	}
	if j.stderr == nil {
		j.stderr = os.Stderr
	}

	return j, nil
}

// Path returns the log file path.
func (j *Journal) Path() string {
	return j.path
}

// Section starts a new section: a blank line followed by [title].
// The header is mirrored to the console.
func (j *Journal) Section(title string) {
	header := "[" + title + "]"
	j.writeString("\n" + header + "\n")
	fmt.Fprintln(j.console, "\n"+sectionStyle.Render(header))
}

// Printf writes a timestamped line to the log file only.
func (j *Journal) Printf(format string, args ...interface{}) {
	j.writeString(j.now().Format(lineTimeFormat) + " " + fmt.Sprintf(format, args...) + "\n")
}

// Echo writes a timestamped line to the log file and the plain message to the console.
func (j *Journal) Echo(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	j.writeString(j.now().Format(lineTimeFormat) + " " + msg + "\n")
	fmt.Fprintln(j.console, msg)
}

// Writer returns a writer that appends raw bytes to the log file.
// It is meant for the stdout and stderr of invoked commands.
func (j *Journal) Writer() io.Writer {
	return journalWriter{j}
}

// Logger returns the component logger for component, creating it on first use.
func (j *Journal) Logger(component string) *Logger {
	j.mu.Lock()
	defer j.mu.Unlock()

	if logger, ok := j.loggers[component]; ok {
		return logger
	}

	logger := &Logger{
		file: log.NewWithOptions(journalWriter{j}, log.Options{
			Level:           j.level.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}

	if j.verbose {
		logger.console = log.NewWithOptions(j.stderr, log.Options{
			Level:           j.level.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}

	j.loggers[component] = logger
	return logger
}

// Close releases the lock and closes the log file. It is safe to call twice.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	_ = unix.Flock(int(j.file.Fd()), unix.LOCK_UN)
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

func (j *Journal) writeString(s string) {
	_, _ = j.write([]byte(s))
}

func (j *Journal) write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, os.ErrClosed
	}
	return j.file.Write(p)
}

type journalWriter struct {
	j *Journal
}

func (w journalWriter) Write(p []byte) (int, error) {
	return w.j.write(p)
}
