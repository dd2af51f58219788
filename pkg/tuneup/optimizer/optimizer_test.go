package optimizer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/jamesainslie/tuneup/pkg/tuneup/catalog"
	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/prompt"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner/runnertest"
)

var sectionRE = regexp.MustCompile(`(?m)^\[(.+)\]$`)

type harness struct {
	opts    Options
	runner  *runnertest.Runner
	store   *history.Store
	prompts *bytes.Buffer
	console *bytes.Buffer
	logPath string
	root    string
}

func newHarness(t *testing.T, distroID, input string, tools ...string) *harness {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "os-release"),
		[]byte("NAME=\"Test Linux\"\nID="+distroID+"\n"), 0o644))

	cfg := &config.Config{
		Workspace: filepath.Join(base, "workspace"),
		Root:      root,
		OSRelease: config.DefaultOSRelease,
		Tuning: config.TuningConfig{
			Swappiness:        config.DefaultSwappiness,
			VFSCachePressure:  config.DefaultVFSCachePressure,
			CongestionControl: config.DefaultCongestionControl,
			DefaultQdisc:      config.DefaultQdisc,
			SnapRetain:        config.DefaultSnapRetain,
		},
		History: config.HistoryConfig{RetentionDays: config.DefaultRetentionDays},
	}

	console := &bytes.Buffer{}
	j, err := logging.Open(logging.Options{Path: cfg.Paths().LogFile, Console: console})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	store, err := history.Open(filepath.Join(base, "history"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := &runnertest.Runner{
		Outputs: map[string]string{
			"lspci": "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics 620\n",
		},
		OutputErrors: map[string]error{
			"dpkg": errors.New("package tlp is not installed"),
		},
	}

	prompts := &bytes.Buffer{}
	return &harness{
		opts: Options{
			Config:   cfg,
			Journal:  j,
			Prompter: prompt.New(strings.NewReader(input), prompts),
			Runner:   r,
			Tools:    runnertest.NewTools(append([]string{"lspci"}, tools...)...),
			History:  store,
			Console:  console,
			Format:   "plain",
			Home:     filepath.Join(base, "home"),
			Uname: func(u *unix.Utsname) error {
				copy(u.Release[:], "6.8.0-test")
				copy(u.Machine[:], "x86_64")
				return nil
			},
			Now: func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) },
		},
		runner:  r,
		store:   store,
		prompts: prompts,
		console: console,
		logPath: cfg.Paths().LogFile,
		root:    root,
	}
}

func (h *harness) run(t *testing.T) (*history.Record, error) {
	t.Helper()
	o, err := New(h.opts)
	require.NoError(t, err)
	return o.Run(context.Background())
}

func (h *harness) log(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.logPath)
	require.NoError(t, err)
	return string(data)
}

func sections(log string) []string {
	var titles []string
	for _, m := range sectionRE.FindAllStringSubmatch(log, -1) {
		titles = append(titles, m[1])
	}
	return titles
}

func catalogTitles() []string {
	var titles []string
	for _, a := range catalog.Default() {
		titles = append(titles, a.Title())
	}
	return titles
}

func TestNew_RequiresCollaborators(t *testing.T) {
	h := newHarness(t, "ubuntu", "")

	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"config", func(o *Options) { o.Config = nil }, "config is required"},
		{"journal", func(o *Options) { o.Journal = nil }, "journal is required"},
		{"prompter", func(o *Options) { o.Prompter = nil }, "prompter is required"},
		{"runner", func(o *Options) { o.Runner = nil }, "runner is required"},
		{"format", func(o *Options) { o.Format = "xml" }, "unknown formatter: xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := h.opts
			tt.mutate(&opts)
			_, err := New(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_UbuntuFullMode(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\n", "update-grub", "flatpak")

	rec, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", rec.DistroID)
	assert.Equal(t, "apt", rec.PackageManager)
	assert.Equal(t, "6.8.0-test", rec.KernelRelease)
	assert.Equal(t, "full", rec.Mode)
	assert.Empty(t, rec.Findings)
	require.Len(t, rec.Outcomes, 7)
	for _, o := range rec.Outcomes {
		assert.NotEqual(t, "declined", o.Status, o.Category)
	}

	log := h.log(t)
	assert.Equal(t, catalogTitles(), sections(log))
	assert.Contains(t, log, `Detected distribution "ubuntu" (package manager: apt)`)

	assert.True(t, h.runner.Ran("apt-get update"))
	assert.True(t, h.runner.Ran("apt-get install -y tlp"))
	assert.True(t, h.runner.Ran("update-grub"))
	assert.True(t, h.runner.Ran("modprobe tcp_bbr"))

	// The reboot prompt comes last and defaults to yes at end of input.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(h.prompts.String()), "Reboot now to apply all changes? [Y/n]:"))
	assert.True(t, rec.RebootRequested)
	lines := h.runner.Lines()
	assert.Equal(t, "systemctl reboot", lines[len(lines)-1])

	assert.Contains(t, h.console.String(), "applied=")

	count, err := h.store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	saved, err := h.store.Get(rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.RebootRequested)
	assert.Len(t, saved.Outcomes, 7)
}

func TestRun_UnsupportedDistroDeclined(t *testing.T) {
	h := newHarness(t, "gentoo", "n\n")

	rec, err := h.run(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDistro))

	assert.True(t, rec.Aborted)
	assert.Empty(t, rec.Outcomes)
	assert.Empty(t, h.runner.Calls())
	assert.Empty(t, h.runner.Queries(), "probe must not run")

	log := h.log(t)
	assert.Empty(t, sections(log))
	assert.Contains(t, log, `Aborted: operator declined to continue on unsupported distribution "gentoo"`)
	assert.Contains(t, h.console.String(), `distribution "gentoo" is not supported`)
	assert.Contains(t, h.prompts.String(), "Continue anyway? [y/N]:")
	assert.NotContains(t, h.prompts.String(), "Select optimization mode")

	saved, err := h.store.Get(rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.Aborted)
}

func TestRun_UnsupportedDistroDefaultsToAbort(t *testing.T) {
	h := newHarness(t, "gentoo", "")

	_, err := h.run(t)
	assert.ErrorIs(t, err, ErrUnsupportedDistro)
}

func TestRun_MissingOSReleaseIsUnsupported(t *testing.T) {
	h := newHarness(t, "ubuntu", "n\n")
	require.NoError(t, os.Remove(filepath.Join(h.root, "etc", "os-release")))

	rec, err := h.run(t)
	assert.ErrorIs(t, err, ErrUnsupportedDistro)
	assert.Equal(t, "", rec.DistroID)
}

func TestRun_UnsupportedDistroAccepted(t *testing.T) {
	h := newHarness(t, "gentoo", "y\n1\nn\n")

	rec, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, "none", rec.PackageManager)
	require.Len(t, rec.Outcomes, 7)
	assert.Equal(t, catalogTitles(), sections(h.log(t)))

	for _, line := range h.runner.Lines() {
		assert.False(t, strings.Contains(line, "install"), "no install on unknown distro: %s", line)
	}
	assert.True(t, h.runner.Ran("systemctl enable --now tlp"))
	assert.Contains(t, h.log(t), "No install command")

	assert.False(t, rec.RebootRequested)
	assert.False(t, h.runner.Ran("systemctl reboot"))
}

func TestRun_StepModeDefaultsMatchFullMode(t *testing.T) {
	tools := []string{"update-grub", "flatpak", "snap", "powertop"}

	full := newHarness(t, "fedora", "1\n", tools...)
	fullRec, err := full.run(t)
	require.NoError(t, err)

	step := newHarness(t, "fedora", "2\n", tools...)
	stepRec, err := step.run(t)
	require.NoError(t, err)

	assert.Equal(t, "step-by-step", stepRec.Mode)
	assert.Equal(t, full.runner.Lines(), step.runner.Lines())
	assert.Equal(t, sections(full.log(t)), sections(step.log(t)))

	require.Len(t, stepRec.Outcomes, len(fullRec.Outcomes))
	for i := range fullRec.Outcomes {
		assert.Equal(t, fullRec.Outcomes[i].Status, stepRec.Outcomes[i].Status)
	}

	for _, title := range catalogTitles() {
		assert.Contains(t, step.prompts.String(), "Apply "+title+"? [Y/n]:")
		assert.NotContains(t, full.prompts.String(), "Apply "+title+"?")
	}
}

func TestRun_StepModeDeclines(t *testing.T) {
	// Decline power and network, accept the rest, decline the reboot.
	h := newHarness(t, "ubuntu", "2\nn\ny\n\nY\n\n\nno\nn\n", "update-grub")

	rec, err := h.run(t)
	require.NoError(t, err)
	require.Len(t, rec.Outcomes, 7)

	statuses := make(map[string]string)
	for _, o := range rec.Outcomes {
		statuses[o.Category] = o.Status
	}
	assert.Equal(t, "declined", statuses["power"])
	assert.Equal(t, "declined", statuses["network"])
	assert.Equal(t, "applied", statuses["cpu"])
	assert.Equal(t, "applied", statuses["gpu"])

	assert.False(t, h.runner.Ran("apt-get"))
	assert.False(t, h.runner.Ran("modprobe"))
	assert.True(t, h.runner.Ran("update-grub"))
	assert.False(t, h.runner.Ran("systemctl reboot"))
	assert.False(t, rec.RebootRequested)

	log := h.log(t)
	assert.Contains(t, log, "Operator declined Power Management")
	assert.Contains(t, log, "Operator declined Network (BBR)")
	assert.NotContains(t, sections(log), "Power Management")
	assert.Contains(t, log, "Reboot skipped by operator")
}

func TestRun_GPUFindingSkipsBootloader(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\nn\n", "update-grub")
	h.runner.Outputs["lspci"] = "01:00.0 VGA compatible controller: NVIDIA Corporation GA104 [GeForce RTX 3070]\n"

	rec, err := h.run(t)
	require.NoError(t, err)

	assert.False(t, h.runner.Ran("update-grub"))
	require.Len(t, rec.Findings, 1)
	assert.Contains(t, rec.Findings[0], probe.NvidiaDriverMissing)

	for _, o := range rec.Outcomes {
		if o.Category == "gpu" {
			assert.Equal(t, "skipped", o.Status)
			assert.Equal(t, probe.NvidiaDriverMissing, o.Reason)
		}
	}

	log := h.log(t)
	assert.Contains(t, log, "Skipping: "+probe.NvidiaDriverMissing)
}

func TestRun_SSDTrimOnlyWithSolidStateDevice(t *testing.T) {
	h := newHarness(t, "arch", "1\nn\n")
	rotational := filepath.Join(h.root, "sys", "block", "nvme0n1", "queue", "rotational")
	require.NoError(t, os.MkdirAll(filepath.Dir(rotational), 0o755))
	require.NoError(t, os.WriteFile(rotational, []byte("0\n"), 0o644))

	_, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, h.runner.Ran("fstrim -av"))

	none := newHarness(t, "arch", "1\nn\n")
	_, err = none.run(t)
	require.NoError(t, err)
	assert.False(t, none.runner.Ran("fstrim"))
}

func TestRun_Interrupted(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\n")

	o, err := New(h.opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Outcomes)
	assert.Empty(t, h.runner.Calls())
	assert.NotContains(t, h.prompts.String(), "Reboot")
	assert.Contains(t, h.log(t), "Interrupted before Power Management")
}

func TestRun_InterruptedAtStepPrompt(t *testing.T) {
	h := newHarness(t, "ubuntu", "")
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	h.opts.Prompter = prompt.New(r, h.prompts)

	o, err := New(h.opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = io.WriteString(w, "2\n")
		// No answer to the first step prompt; the operator presses Ctrl-C.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	var rec *history.Record
	go func() {
		var runErr error
		rec, runErr = o.Run(ctx)
		done <- runErr
	}()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop while waiting for an answer")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Outcomes)
	assert.Empty(t, h.runner.Calls())
	assert.Contains(t, h.log(t), "Interrupted before Power Management")
	assert.False(t, rec.RebootRequested)
}

func TestRun_RealRunnerDryRun(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\nn\n")
	h.opts.Runner = runner.NewExec(h.opts.Journal, runner.Options{DryRun: true})
	h.opts.Tools = runner.PathTools{}
	h.opts.Uname = nil
	h.opts.DryRun = true

	var (
		rec *history.Record
		err error
	)
	require.NotPanics(t, func() { rec, err = h.run(t) })
	require.NoError(t, err)

	assert.True(t, rec.DryRun)
	assert.NotEmpty(t, rec.KernelRelease)
	require.Len(t, rec.Outcomes, len(catalogTitles()))

	log := h.log(t)
	assert.Equal(t, catalogTitles(), sections(log))
	assert.Contains(t, log, "[dry-run] $ ")
	assert.Contains(t, log, "[dry-run] $ sysctl -w vm.swappiness=")
	assert.NotContains(t, log, "[dry-run] $ systemctl reboot")
	assert.Contains(t, log, "Reboot skipped by operator")
}

func TestRun_DryRunSkipsFileWrites(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\n")
	h.opts.DryRun = true
	sysctlConf := filepath.Join(h.root, "etc", "sysctl.conf")
	require.NoError(t, os.WriteFile(sysctlConf, []byte("vm.swappiness=60\n"), 0o644))

	rec, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, rec.DryRun)

	_, statErr := os.Stat(filepath.Join(h.opts.Config.Paths().Backups, "sysctl.conf.bak"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(h.root, "etc", "modules-load.d", "bbr.conf"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Contains(t, h.console.String(), "Dry run: commands are logged but not executed")
}

func TestRun_WithoutHistory(t *testing.T) {
	h := newHarness(t, "void", "1\nn\n")
	h.opts.History = nil

	rec, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, "xbps", rec.PackageManager)

	count, err := h.store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

type failingRecorder struct{}

func (failingRecorder) Save(*history.Record) error { return errors.New("disk full") }
func (failingRecorder) Cleanup(int, time.Time) (int, error) {
	return 0, nil
}

func TestRun_HistoryFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t, "ubuntu", "1\nn\n")
	h.opts.History = failingRecorder{}

	_, err := h.run(t)
	require.NoError(t, err)
	assert.Contains(t, h.log(t), "failed to save run history")
}
