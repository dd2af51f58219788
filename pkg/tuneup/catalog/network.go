package catalog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

const modulesLoadDir = "/etc/modules-load.d"

type networkAction struct{}

func (networkAction) Category() string { return "network" }
func (networkAction) Title() string    { return "Network (BBR)" }

func (networkAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	module := "tcp_" + env.Tuning.CongestionControl
	env.run(ctx, &o, runner.NewPrivileged("modprobe", module))

	// Load the module at boot as well.
	conf := filepath.Join(env.SystemPath(modulesLoadDir), env.Tuning.CongestionControl+".conf")
	if env.DryRun {
		env.note(&o, "[dry-run] would write %s to %s", module, conf)
	} else if err := writeModulesLoad(conf, module); err != nil {
		env.note(&o, "Writing %s failed: %v", conf, err)
	} else {
		env.note(&o, "Wrote %s to %s", module, conf)
	}

	env.run(ctx, &o, sysctlSet("net.core.default_qdisc", env.Tuning.DefaultQdisc))
	env.run(ctx, &o, sysctlSet("net.ipv4.tcp_congestion_control", env.Tuning.CongestionControl))

	return o
}

func writeModulesLoad(path, module string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(module+"\n"), 0o644)
}
