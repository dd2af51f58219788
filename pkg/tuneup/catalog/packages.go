package catalog

import (
	"context"
	"strconv"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

type packagesAction struct{}

func (packagesAction) Category() string { return "packages" }
func (packagesAction) Title() string    { return "Flatpak & Snap" }

func (packagesAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	hasFlatpak := env.Tools.Has("flatpak")
	hasSnap := env.Tools.Has("snap")

	if !hasFlatpak && !hasSnap {
		env.skip(&o, "neither flatpak nor snap is installed")
		return o
	}

	if hasFlatpak {
		env.run(ctx, &o, runner.New("flatpak", "uninstall", "--unused", "-y"))
		env.run(ctx, &o, runner.New("flatpak", "update", "-y"))
	} else {
		env.note(&o, "flatpak not installed")
	}

	if hasSnap {
		env.run(ctx, &o, runner.NewPrivileged("snap", "refresh"))
		env.run(ctx, &o, runner.NewPrivileged("snap", "set", "system", "refresh.retain="+strconv.Itoa(env.Tuning.SnapRetain)))
	} else {
		env.note(&o, "snap not installed")
	}

	return o
}
