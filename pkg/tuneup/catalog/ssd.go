package catalog

import (
	"context"
	"strings"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

type ssdAction struct{}

func (ssdAction) Category() string { return "ssd" }
func (ssdAction) Title() string    { return "SSD TRIM" }

func (ssdAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	if !env.Report.HasSSD() {
		env.skip(&o, "no solid-state drive detected")
		return o
	}

	env.note(&o, "Solid-state drives: %s", strings.Join(env.Report.SSDs, ", "))
	env.run(ctx, &o, runner.NewPrivileged("fstrim", "-av"))
	return o
}
