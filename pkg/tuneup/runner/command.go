// Package runner invokes external tools for tuneup.
//
// Commands are argument vectors, never shell strings. Every invocation is
// echoed into the run journal together with its output and exit status,
// and the outcome is returned as a Result instead of aborting the run.
package runner

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string

	// Privileged commands change system state and get a sudo prefix
	// when the process is not already root.
	Privileged bool
}

// New returns an unprivileged command.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// NewPrivileged returns a command that needs root.
func NewPrivileged(name string, args ...string) Command {
	return Command{Name: name, Args: args, Privileged: true}
}

// IsZero reports whether the command has no program name.
func (c Command) IsZero() bool {
	return c.Name == ""
}

// WithArgs returns a copy of c with extra arguments appended.
func (c Command) WithArgs(args ...string) Command {
	out := c
	out.Args = append(append([]string(nil), c.Args...), args...)
	return out
}

// Argv returns the program name followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command for logs, quoting arguments that need it.
func (c Command) String() string {
	return strings.Join(lo.Map(c.Argv(), func(arg string, _ int) string {
		if arg == "" || strings.ContainsAny(arg, " \t\"'$\\") {
			return strconv.Quote(arg)
		}
		return arg
	}), " ")
}

// Result is the outcome of running a Command.
type Result struct {
	Command  Command
	ExitCode int
	Err      error
	Duration time.Duration

	// DryRun is set when the command was only logged.
	DryRun bool
}

// OK reports whether the command ran and exited zero, or was a dry run.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Status renders the result for the journal and summaries.
func (r Result) Status() string {
	switch {
	case r.DryRun:
		return "dry-run"
	case r.OK():
		return "ok"
	case r.ExitCode > 0, r.Err == nil:
		return "exit " + strconv.Itoa(r.ExitCode)
	default:
		return "error: " + r.Err.Error()
	}
}
