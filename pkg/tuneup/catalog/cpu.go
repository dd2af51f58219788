package catalog

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/tuneup/pkg/tuneup/fsutil"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

const (
	sysctlConf       = "/etc/sysctl.conf"
	sysctlBackupName = "sysctl.conf.bak"
)

type cpuAction struct{}

func (cpuAction) Category() string { return "cpu" }
func (cpuAction) Title() string    { return "CPU & Memory Tuning" }

func (cpuAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome

	env.run(ctx, &o, sysctlSet("vm.swappiness", strconv.Itoa(env.Tuning.Swappiness)))
	env.run(ctx, &o, sysctlSet("vm.vfs_cache_pressure", strconv.Itoa(env.Tuning.VFSCachePressure)))

	src := env.SystemPath(sysctlConf)
	dst := filepath.Join(env.Paths.Backups, sysctlBackupName)

	if env.DryRun {
		env.note(&o, "[dry-run] would back up %s to %s", src, dst)
		return o
	}

	n, err := fsutil.CopyFile(src, dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		env.note(&o, "%s not found; nothing to back up", src)
	case err != nil:
		env.note(&o, "Backup of %s failed: %v", src, err)
	default:
		env.note(&o, "Backed up %s to %s (%s)", src, dst, humanize.Bytes(uint64(n)))
	}

	return o
}

func sysctlSet(key, value string) runner.Command {
	return runner.NewPrivileged("sysctl", "-w", key+"="+value)
}
