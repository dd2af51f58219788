package catalog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/distro"
	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner/runnertest"
)

var errNotInstalled = errors.New("package is not installed")

type testEnv struct {
	*Env
	runner  *runnertest.Runner
	logPath string
}

func newTestEnv(t *testing.T, distroID string, tools ...string) *testEnv {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{Workspace: filepath.Join(base, "workspace")}
	paths := cfg.Paths()
	require.NoError(t, paths.EnsureWorkspace())

	j, err := logging.Open(logging.Options{Path: paths.LogFile, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	r := &runnertest.Runner{
		// Package queries fail by default: nothing is installed.
		OutputErrors: map[string]error{
			"dpkg":       errNotInstalled,
			"rpm":        errNotInstalled,
			"pacman":     errNotInstalled,
			"xbps-query": errNotInstalled,
		},
	}

	return &testEnv{
		Env: &Env{
			Profile: distro.Lookup(distroID),
			Report:  probe.Report{Findings: probe.Findings{}},
			Paths:   paths,
			Tuning: config.TuningConfig{
				Swappiness:        10,
				VFSCachePressure:  50,
				CongestionControl: "bbr",
				DefaultQdisc:      "fq",
				SnapRetain:        2,
			},
			Root:    filepath.Join(base, "root"),
			Home:    filepath.Join(base, "home"),
			Runner:  r,
			Tools:   runnertest.NewTools(tools...),
			Journal: j,
		},
		runner:  r,
		logPath: paths.LogFile,
	}
}

func (e *testEnv) log(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.logPath)
	require.NoError(t, err)
	return string(data)
}

func TestDefault_Order(t *testing.T) {
	var categories, titles []string
	for _, a := range Default() {
		categories = append(categories, a.Category())
		titles = append(titles, a.Title())
	}

	assert.Equal(t, []string{"power", "cpu", "gpu", "browsers", "packages", "ssd", "network"}, categories)
	assert.Equal(t, []string{
		"Power Management",
		"CPU & Memory Tuning",
		"GPU Drivers",
		"Browser Profiles",
		"Flatpak & Snap",
		"SSD TRIM",
		"Network (BBR)",
	}, titles)
}

func TestApply_WritesSectionAndResult(t *testing.T) {
	env := newTestEnv(t, "ubuntu")
	env.runner.ExitCodes = map[string]int{"sysctl -w vm.swappiness=10": 255}

	o := Apply(context.Background(), env.Env, cpuAction{})

	assert.Equal(t, "cpu", o.Category)
	assert.Equal(t, "CPU & Memory Tuning", o.Title)
	assert.Equal(t, Applied, o.Status)
	require.Len(t, o.Failed(), 1)
	assert.Equal(t, 255, o.Failed()[0].ExitCode)

	content := env.log(t)
	assert.Contains(t, content, "\n[CPU & Memory Tuning]\n")
	assert.Contains(t, content, "Result: applied (2 commands, 1 failed)")
}

func TestDecline(t *testing.T) {
	env := newTestEnv(t, "ubuntu")

	o := Decline(env.Env, gpuAction{})

	assert.Equal(t, Declined, o.Status)
	assert.Equal(t, "gpu", o.Category)
	assert.Empty(t, env.runner.Calls())
	assert.Contains(t, env.log(t), "Operator declined GPU Drivers")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "declined", Declined.String())
	assert.Equal(t, "unknown", Status(9).String())
}

func TestEnv_SystemPath(t *testing.T) {
	assert.Equal(t, "/etc/sysctl.conf", (&Env{}).SystemPath("/etc/sysctl.conf"))
	assert.Equal(t, "/etc/sysctl.conf", (&Env{Root: "/"}).SystemPath("/etc/sysctl.conf"))
	assert.Equal(t, "/mnt/etc/sysctl.conf", (&Env{Root: "/mnt"}).SystemPath("/etc/sysctl.conf"))
}
