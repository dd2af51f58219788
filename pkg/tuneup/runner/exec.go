package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/outofforest/libexec"
	"github.com/outofforest/logger"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
)

// Runner executes commands.
type Runner interface {
	// Run executes cmd with its output sent to the journal. Failures are
	// reported in the Result, never as a panic or abort.
	Run(ctx context.Context, cmd Command) Result

	// Output executes a read-only query and returns its stdout.
	// Queries run even in dry-run mode.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// Options configures an Exec runner.
type Options struct {
	// Sudo prefixes privileged commands with sudo when euid is not 0.
	Sudo bool

	// DryRun logs commands without executing them.
	DryRun bool
}

// Exec runs commands as child processes through libexec, which stops the
// child when the context is cancelled.
type Exec struct {
	journal *logging.Journal
	log     *logging.Logger
	opts    Options
	euid    func() int
	now     func() time.Time
}

// NewExec returns a runner writing into journal.
func NewExec(journal *logging.Journal, opts Options) *Exec {
	return &Exec{
		journal: journal,
		log:     journal.Logger("runner"),
		opts:    opts,
		euid:    unix.Geteuid,
		now:     time.Now,
	}
}

// Resolve returns the argv actually executed for cmd.
func (e *Exec) Resolve(cmd Command) []string {
	argv := cmd.Argv()
	if cmd.Privileged && e.opts.Sudo && e.euid() != 0 {
		argv = append([]string{"sudo"}, argv...)
	}
	return argv
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, cmd Command) Result {
	argv := e.Resolve(cmd)
	display := Command{Name: argv[0], Args: argv[1:]}.String()

	if e.opts.DryRun {
		e.journal.Printf("[dry-run] $ %s", display)
		return Result{Command: cmd, DryRun: true}
	}

	e.journal.Printf("$ %s", display)

	c := exec.Command(argv[0], argv[1:]...)
	c.Stdout = e.journal.Writer()
	c.Stderr = e.journal.Writer()

	start := e.now()
	err := libexec.Exec(withLogger(ctx), c)
	res := Result{
		Command:  cmd,
		ExitCode: exitCode(c, err),
		Err:      err,
		Duration: e.now().Sub(start),
	}

	e.journal.Printf("%s (%s)", res.Status(), res.Duration.Round(time.Millisecond))

	log := e.log.With("cmd", cmd.Name)
	log.Debug("command finished", "exit", res.ExitCode, "duration", res.Duration)
	if res.ExitCode < 0 {
		log.Warn("command did not run", "error", err)
	}

	return res
}

// Output implements Runner.
func (e *Exec) Output(ctx context.Context, cmd Command) ([]byte, error) {
	out, err := query(ctx, cmd)
	if err != nil {
		e.log.Debug("query failed", "cmd", cmd.String(), "error", err)
	}
	return out, err
}

// ReadOnly runs queries and refuses every state-changing command. It needs
// no journal, so "tuneup probe" can inspect a host without touching the
// run log.
type ReadOnly struct{}

// ErrReadOnly is the Result error for commands refused by ReadOnly.
var ErrReadOnly = errors.New("command not allowed in read-only mode")

// Run implements Runner. It never executes cmd.
func (ReadOnly) Run(_ context.Context, cmd Command) Result {
	return Result{Command: cmd, ExitCode: -1, Err: fmt.Errorf("%w: %s", ErrReadOnly, cmd)}
}

// Output implements Runner.
func (ReadOnly) Output(ctx context.Context, cmd Command) ([]byte, error) {
	return query(ctx, cmd)
}

func query(ctx context.Context, cmd Command) ([]byte, error) {
	var stdout bytes.Buffer

	c := exec.Command(cmd.Name, cmd.Args...)
	c.Stdout = &stdout
	c.Stderr = io.Discard

	if err := libexec.Exec(withLogger(ctx), c); err != nil {
		return stdout.Bytes(), fmt.Errorf("running %s: %w", cmd.Name, err)
	}

	return stdout.Bytes(), nil
}

// withLogger returns ctx carrying the zap logger libexec writes its debug
// lines to. A logger already on ctx is kept; otherwise those lines are
// dropped, since the journal records every command itself.
func withLogger(ctx context.Context) context.Context {
	if logger.Get(ctx) != nil {
		return ctx
	}
	return logger.WithLogger(ctx, zap.NewNop())
}

var (
	_ Runner = (*Exec)(nil)
	_ Runner = ReadOnly{}
)

// exitCode returns the child's exit status, or -1 when it never started
// or was killed by a signal.
func exitCode(c *exec.Cmd, err error) int {
	if c.ProcessState != nil {
		return c.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	if err != nil {
		return -1
	}
	return 0
}
