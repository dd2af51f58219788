package catalog

import (
	"context"

	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

type gpuAction struct{}

func (gpuAction) Category() string { return "gpu" }
func (gpuAction) Title() string    { return "GPU Drivers" }

func (gpuAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	if reason, ok := env.Report.Findings[probe.GPU]; ok {
		env.skip(&o, "%s", reason)
		return o
	}

	cmd, ok := bootloaderCommand(env)
	if !ok {
		env.skip(&o, "no bootloader configuration tool found (update-grub, grub2-mkconfig, grub-mkconfig)")
		return o
	}

	env.run(ctx, &o, cmd)
	return o
}

// bootloaderCommand picks the first available GRUB regeneration tool.
func bootloaderCommand(env *Env) (runner.Command, bool) {
	switch runner.FirstOf(env.Tools, "update-grub", "grub2-mkconfig", "grub-mkconfig") {
	case "update-grub":
		return runner.NewPrivileged("update-grub"), true
	case "grub2-mkconfig":
		return runner.NewPrivileged("grub2-mkconfig", "-o", env.SystemPath("/boot/grub2/grub.cfg")), true
	case "grub-mkconfig":
		return runner.NewPrivileged("grub-mkconfig", "-o", env.SystemPath("/boot/grub/grub.cfg")), true
	default:
		return runner.Command{}, false
	}
}
