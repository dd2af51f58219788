// Package optimizer runs a complete tuneup: detect the distribution, probe
// the hardware, pick a mode, apply the catalog and offer a reboot.
package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/tuneup/pkg/tuneup/catalog"
	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/distro"
	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
	"github.com/jamesainslie/tuneup/pkg/tuneup/output"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/prompt"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// ErrUnsupportedDistro is returned when the operator declines to continue
// on a distribution outside the supported set.
var ErrUnsupportedDistro = errors.New("unsupported distribution")

// RebootCommand is run when the operator accepts the final reboot prompt.
var RebootCommand = runner.NewPrivileged("systemctl", "reboot")

// Recorder persists run records.
type Recorder interface {
	Save(r *history.Record) error
	Cleanup(retentionDays int, now time.Time) (int, error)
}

// Options wires an Optimizer to its collaborators.
type Options struct {
	Config   *config.Config
	Journal  *logging.Journal
	Prompter *prompt.Prompter
	Runner   runner.Runner
	Tools    runner.Tools

	// History is optional. Nil disables run recording.
	History Recorder

	// Console receives the end-of-run summary. Nil means os.Stdout.
	Console io.Writer

	// Format names the summary formatter. Empty means "pretty".
	Format string

	// Home is the operator's home directory. Empty means os.UserHomeDir.
	Home string

	// DryRun skips file writes and the reboot. The Runner is expected to
	// be in dry-run mode as well.
	DryRun bool

	// Uname and Now override the kernel and clock for tests.
	Uname func(*unix.Utsname) error
	Now   func() time.Time
}

// Optimizer runs one tuneup.
type Optimizer struct {
	opts      Options
	formatter output.Formatter
	log       *logging.Logger
}

// New validates opts and returns an Optimizer.
func New(opts Options) (*Optimizer, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("config is required")
	case opts.Journal == nil:
		return nil, errors.New("journal is required")
	case opts.Prompter == nil:
		return nil, errors.New("prompter is required")
	case opts.Runner == nil:
		return nil, errors.New("runner is required")
	}

	if opts.Tools == nil {
		opts.Tools = runner.PathTools{}
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = "pretty"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		opts.Home = home
	}

	formatter, err := output.Get(opts.Format)
	if err != nil {
		return nil, err
	}

	return &Optimizer{
		opts:      opts,
		formatter: formatter,
		log:       opts.Journal.Logger("optimizer"),
	}, nil
}

// Run performs the tuneup and returns its record. The record is returned
// even when err is non-nil.
func (o *Optimizer) Run(ctx context.Context) (*history.Record, error) {
	cfg := o.opts.Config
	j := o.opts.Journal

	rec := history.NewRecord(o.opts.Now())
	rec.DryRun = o.opts.DryRun
	rec.LogPath = j.Path()

	paths := cfg.Paths()
	if err := paths.EnsureWorkspace(); err != nil {
		return rec, err
	}

	j.Printf("tuneup run %s started", rec.ID)
	if o.opts.DryRun {
		j.Echo("Dry run: commands are logged but not executed")
	}

	id := distro.ReadID(filepath.Join(cfg.Root, cfg.OSRelease))
	rec.DistroID = id
	if !distro.IsSupported(id) {
		j.Echo("Warning: distribution %q is not supported; package installs will be skipped", id)
		proceed := o.opts.Prompter.YesNo(ctx, "Continue anyway?", false)
		if err := ctx.Err(); err != nil {
			j.Printf("Interrupted at the distribution prompt")
			rec.Aborted = true
			rec.PackageManager = distro.None.String()
			o.finish(rec)
			return rec, fmt.Errorf("run interrupted: %w", err)
		}
		if !proceed {
			j.Printf("Aborted: operator declined to continue on unsupported distribution %q", id)
			o.log.Warn("run aborted", "distro", id)
			rec.Aborted = true
			rec.PackageManager = distro.None.String()
			o.finish(rec)
			return rec, fmt.Errorf("%w: %q", ErrUnsupportedDistro, id)
		}
		j.Printf("Operator chose to continue on unsupported distribution %q", id)
	}

	profile := distro.Lookup(id)
	rec.PackageManager = profile.PackageManager.String()
	j.Printf("Detected distribution %q (package manager: %s)", id, profile.PackageManager)

	report := probe.Hardware(ctx, probe.Options{
		Root:   cfg.Root,
		Runner: o.opts.Runner,
		Tools:  o.opts.Tools,
		Logger: j.Logger("probe"),
		Uname:  o.opts.Uname,
	})
	rec.KernelRelease = report.KernelRelease
	for _, category := range report.Findings.Categories() {
		reason := report.Findings[category]
		j.Printf("Dry-run finding [%s]: %s", category, reason)
		rec.Findings = append(rec.Findings, category+": "+reason)
	}

	mode := o.opts.Prompter.ChooseMode(ctx)
	rec.Mode = mode.String()
	j.Printf("Mode: %s", mode)

	env := &catalog.Env{
		Profile: profile,
		Report:  report,
		Paths:   paths,
		Tuning:  cfg.Tuning,
		Root:    cfg.Root,
		Home:    o.opts.Home,
		DryRun:  o.opts.DryRun,
		Runner:  o.opts.Runner,
		Tools:   o.opts.Tools,
		Journal: j,
	}

	runErr := o.apply(ctx, env, mode, rec)

	rec.FinishedAt = o.opts.Now().UTC()
	o.printSummary(rec)

	if runErr != nil {
		o.finish(rec)
		return rec, runErr
	}

	reboot := o.opts.Prompter.YesNo(ctx, "Reboot now to apply all changes?", true)
	if err := ctx.Err(); err != nil {
		j.Printf("Interrupted at the reboot prompt")
		o.finish(rec)
		return rec, fmt.Errorf("run interrupted: %w", err)
	}
	rec.RebootRequested = reboot
	o.finish(rec)

	if reboot {
		j.Printf("Rebooting")
		res := o.opts.Runner.Run(ctx, RebootCommand)
		if !res.OK() {
			j.Echo("Reboot failed (%s); reboot manually to apply all changes", res.Status())
		}
	} else {
		j.Printf("Reboot skipped by operator")
	}

	return rec, nil
}

// apply runs the catalog in order. In step mode each action is gated by a
// yes/no prompt that defaults to yes.
func (o *Optimizer) apply(ctx context.Context, env *catalog.Env, mode prompt.Mode, rec *history.Record) error {
	for _, action := range catalog.Default() {
		if err := ctx.Err(); err != nil {
			return o.interrupted(action, err)
		}

		if mode == prompt.StepByStep {
			accepted := o.opts.Prompter.YesNo(ctx, fmt.Sprintf("Apply %s?", action.Title()), true)
			if err := ctx.Err(); err != nil {
				return o.interrupted(action, err)
			}
			if !accepted {
				rec.Outcomes = append(rec.Outcomes, history.FromOutcome(catalog.Decline(env, action)))
				continue
			}
		}

		rec.Outcomes = append(rec.Outcomes, history.FromOutcome(catalog.Apply(ctx, env, action)))
	}
	return nil
}

func (o *Optimizer) interrupted(next catalog.Action, err error) error {
	o.opts.Journal.Printf("Interrupted before %s", next.Title())
	return fmt.Errorf("run interrupted: %w", err)
}

func (o *Optimizer) printSummary(rec *history.Record) {
	var buf bytes.Buffer
	if err := o.formatter.Format(&buf, rec); err != nil {
		o.log.Warn("failed to render summary", "error", err)
		return
	}
	_, _ = io.Copy(o.opts.Console, &buf)

	o.opts.Journal.Printf("Summary: %d applied, %d skipped, %d declined, %d failed commands",
		rec.CountStatus(catalog.Applied.String()),
		rec.CountStatus(catalog.Skipped.String()),
		rec.CountStatus(catalog.Declined.String()),
		rec.FailedCommands())
}

// finish stamps the record and stores it. Storage problems are logged and
// never fail the run.
func (o *Optimizer) finish(rec *history.Record) {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = o.opts.Now().UTC()
	}
	if o.opts.History == nil {
		return
	}

	if err := o.opts.History.Save(rec); err != nil {
		o.log.Warn("failed to save run history", "error", err)
		return
	}
	o.log.Debug("run saved", "id", rec.ID)

	// Zero retention would empty the store; pruning then waits for an
	// explicit "history clean".
	if o.opts.Config.History.RetentionDays <= 0 {
		return
	}
	removed, err := o.opts.History.Cleanup(o.opts.Config.History.RetentionDays, o.opts.Now())
	if err != nil {
		o.log.Warn("failed to clean run history", "error", err)
		return
	}
	if removed > 0 {
		o.log.Info("removed old runs", "count", removed)
	}
}
