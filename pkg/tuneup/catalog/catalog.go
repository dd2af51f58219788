// Package catalog holds the ordered set of optimization actions.
//
// Actions are independent and best-effort: a failed command is recorded in
// the action's Outcome and the action carries on with its next step. Skip
// decisions come from tool presence and the probe's findings.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/distro"
	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// Status is how an action ended.
type Status int

const (
	// Applied means the action ran its commands. Some may have failed.
	Applied Status = iota
	// Skipped means a precondition was not met.
	Skipped
	// Declined means the operator chose not to run the action.
	Declined
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Declined:
		return "declined"
	default:
		return "unknown"
	}
}

// Outcome records what an action did.
type Outcome struct {
	Category string
	Title    string
	Status   Status
	Reason   string
	Results  []runner.Result
	Notes    []string
}

// Failed returns the results of commands that did not succeed.
func (o Outcome) Failed() []runner.Result {
	return lo.Filter(o.Results, func(r runner.Result, _ int) bool {
		return !r.OK()
	})
}

// Env is everything an action may consult or touch.
type Env struct {
	Profile distro.Profile
	Report  probe.Report
	Paths   config.Paths
	Tuning  config.TuningConfig

	// Root is the filesystem root system paths are resolved under.
	Root string

	// Home is the operator's home directory, for browser profiles.
	Home string

	// DryRun skips file writes. Commands are handled by the runner.
	DryRun bool

	Runner  runner.Runner
	Tools   runner.Tools
	Journal *logging.Journal
}

// SystemPath resolves an absolute system path under Root.
func (e *Env) SystemPath(path string) string {
	if e.Root == "" {
		return path
	}
	return filepath.Join(e.Root, path)
}

func (e *Env) run(ctx context.Context, o *Outcome, cmd runner.Command) runner.Result {
	res := e.Runner.Run(ctx, cmd)
	o.Results = append(o.Results, res)
	return res
}

func (e *Env) note(o *Outcome, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.Journal.Printf("%s", msg)
	o.Notes = append(o.Notes, msg)
}

func (e *Env) skip(o *Outcome, format string, args ...interface{}) {
	o.Status = Skipped
	o.Reason = fmt.Sprintf(format, args...)
	e.Journal.Printf("Skipping: %s", o.Reason)
}

// Action is one optimization routine.
type Action interface {
	// Category is the short key used in findings and history.
	Category() string

	// Title is the section header written to the journal.
	Title() string

	// Run applies the action. It never aborts on a failed command.
	Run(ctx context.Context, env *Env) Outcome
}

// Default returns the catalog in its fixed execution order.
func Default() []Action {
	return []Action{
		powerAction{},
		cpuAction{},
		gpuAction{},
		browsersAction{},
		packagesAction{},
		ssdAction{},
		networkAction{},
	}
}

// Apply writes the action's section header, runs it and records the
// result line in the journal.
func Apply(ctx context.Context, env *Env, a Action) Outcome {
	env.Journal.Section(a.Title())

	o := a.Run(ctx, env)
	o.Category = a.Category()
	o.Title = a.Title()

	failed := len(o.Failed())
	env.Journal.Printf("Result: %s (%d commands, %d failed)", o.Status, len(o.Results), failed)
	env.Journal.Logger("catalog").Info("action finished",
		"category", o.Category,
		"status", o.Status.String(),
		"commands", len(o.Results),
		"failed", failed)

	return o
}

// Decline records an action the operator chose not to run.
func Decline(env *Env, a Action) Outcome {
	env.Journal.Printf("Operator declined %s", a.Title())
	return Outcome{
		Category: a.Category(),
		Title:    a.Title(),
		Status:   Declined,
		Reason:   "declined by operator",
	}
}
