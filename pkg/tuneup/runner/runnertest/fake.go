// Package runnertest provides in-memory runner fakes for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// Runner records every command and returns canned results.
type Runner struct {
	mu sync.Mutex

	// ExitCodes maps a rendered command (Command.String) to its exit code.
	ExitCodes map[string]int

	// Outputs maps a program name to the stdout returned by Output.
	Outputs map[string]string

	// OutputErrors maps a program name to an error returned by Output.
	OutputErrors map[string]error

	calls   []runner.Command
	queries []runner.Command
}

// Run implements runner.Runner.
func (r *Runner) Run(_ context.Context, cmd runner.Command) runner.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, cmd)
	return runner.Result{Command: cmd, ExitCode: r.ExitCodes[cmd.String()]}
}

// Output implements runner.Runner.
func (r *Runner) Output(_ context.Context, cmd runner.Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queries = append(r.queries, cmd)
	if err := r.OutputErrors[cmd.Name]; err != nil {
		return nil, err
	}
	return []byte(r.Outputs[cmd.Name]), nil
}

// Calls returns the commands passed to Run, in order.
func (r *Runner) Calls() []runner.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Command(nil), r.calls...)
}

// Lines returns Calls rendered with Command.String.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Ran reports whether a command whose rendering starts with prefix was run.
func (r *Runner) Ran(prefix string) bool {
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Queries returns the commands passed to Output, in order.
func (r *Runner) Queries() []runner.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Command(nil), r.queries...)
}

// Tools is a fixed set of installed programs.
type Tools map[string]bool

// NewTools returns Tools with names installed.
func NewTools(names ...string) Tools {
	t := make(Tools, len(names))
	for _, n := range names {
		t[n] = true
	}
	return t
}

// Has implements runner.Tools.
func (t Tools) Has(name string) bool {
	return t[name]
}
