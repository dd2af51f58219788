package catalog

import (
	"context"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

const tlpPackage = "tlp"

type powerAction struct{}

func (powerAction) Category() string { return "power" }
func (powerAction) Title() string    { return "Power Management" }

func (powerAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	if isInstalled(ctx, env, tlpPackage) {
		env.note(&o, "%s already installed", tlpPackage)
	} else if !env.Profile.CanInstall() {
		// Without an install command there is nothing safe to run.
		env.note(&o, "No install command for package manager %q; skipping %s install", env.Profile.PackageManager, tlpPackage)
	} else {
		if !env.Profile.Update.IsZero() {
			env.run(ctx, &o, env.Profile.Update)
		}
		env.run(ctx, &o, env.Profile.Install.WithArgs(tlpPackage))
	}

	env.run(ctx, &o, runner.NewPrivileged("systemctl", "enable", "--now", tlpPackage))

	if env.Tools.Has("powertop") {
		env.run(ctx, &o, runner.NewPrivileged("powertop", "--auto-tune"))
	} else {
		env.note(&o, "powertop not installed; skipping auto-tune")
	}

	return o
}

// isInstalled checks the binary on PATH first, then asks the package manager.
func isInstalled(ctx context.Context, env *Env, pkg string) bool {
	if env.Tools.Has(pkg) {
		return true
	}
	if !env.Profile.CanQuery() {
		return false
	}
	_, err := env.Runner.Output(ctx, env.Profile.Query.WithArgs(pkg))
	return err == nil
}
