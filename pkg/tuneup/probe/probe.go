// Package probe inspects the host hardware before any action runs.
//
// Probing never changes the system. Problems it finds are recorded as
// Findings keyed by action category; the matching action skips and logs
// the recorded reason.
package probe

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sys/unix"

	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// GPU is the findings key consulted by the GPU action.
const GPU = "GPU"

// NvidiaDriverMissing is the GPU finding recorded when an NVIDIA card is
// present without its diagnostic tool.
const NvidiaDriverMissing = "NVIDIA GPU detected but nvidia-smi is missing; the proprietary driver is not installed"

// Findings maps an action category to the reason it must be skipped.
// It is filled once during probing and only read afterwards.
type Findings map[string]string

// Has reports whether category has a recorded finding.
func (f Findings) Has(category string) bool {
	_, ok := f[category]
	return ok
}

// Categories returns the categories with findings, sorted.
func (f Findings) Categories() []string {
	keys := lo.Keys(f)
	sort.Strings(keys)
	return keys
}

// Report is the result of probing the host.
type Report struct {
	KernelRelease string
	Machine       string

	// SSDs lists non-rotational block devices by name (e.g. nvme0n1).
	SSDs []string

	// GPUs lists display controller lines from lspci.
	GPUs []string

	Findings Findings
}

// HasSSD reports whether any non-rotational block device was found.
func (r Report) HasSSD() bool {
	return len(r.SSDs) > 0
}

// Options configures a probe.
type Options struct {
	// Root is the filesystem root sysfs paths are resolved under.
	Root string

	Runner runner.Runner
	Tools  runner.Tools
	Logger *logging.Logger

	// Uname overrides the kernel identification call. Nil uses unix.Uname.
	Uname func(*unix.Utsname) error
}

// Hardware probes the GPU, block devices and kernel release.
func Hardware(ctx context.Context, opts Options) Report {
	report := Report{Findings: make(Findings)}

	report.KernelRelease, report.Machine = kernel(opts)
	devices := pciDevices(ctx, opts)
	report.GPUs = displayControllers(devices)

	if hasNvidia(devices) && !opts.Tools.Has("nvidia-smi") {
		report.Findings[GPU] = NvidiaDriverMissing
		logWarn(opts.Logger, "gpu driver gap", "reason", NvidiaDriverMissing)
	}

	report.SSDs = SolidStateDevices(opts.Root)
	logInfo(opts.Logger, "probe complete",
		"kernel", report.KernelRelease,
		"ssds", len(report.SSDs),
		"findings", len(report.Findings))

	return report
}

func kernel(opts Options) (release, machine string) {
	uname := opts.Uname
	if uname == nil {
		uname = unix.Uname
	}

	var uts unix.Utsname
	if err := uname(&uts); err != nil {
		logWarn(opts.Logger, "uname failed", "error", err)
		return "", ""
	}
	return unix.ByteSliceToString(uts.Release[:]), unix.ByteSliceToString(uts.Machine[:])
}

func pciDevices(ctx context.Context, opts Options) []string {
	if !opts.Tools.Has("lspci") {
		logInfo(opts.Logger, "lspci not installed, skipping GPU probe")
		return nil
	}

	out, err := opts.Runner.Output(ctx, runner.New("lspci"))
	if err != nil {
		// A failing lspci is not a finding; the GPU action still runs.
		logWarn(opts.Logger, "lspci failed", "error", err)
	}

	return lo.Compact(strings.Split(strings.TrimSpace(string(out)), "\n"))
}

func displayControllers(devices []string) []string {
	return lo.Filter(devices, func(line string, _ int) bool {
		l := strings.ToLower(line)
		return strings.Contains(l, "vga") || strings.Contains(l, "3d controller") || strings.Contains(l, "display controller")
	})
}

func hasNvidia(lines []string) bool {
	return lo.ContainsBy(lines, func(line string) bool {
		return strings.Contains(strings.ToLower(line), "nvidia")
	})
}

// virtualDevicePrefixes name block devices that report rotational=0
// without being backed by flash storage.
var virtualDevicePrefixes = []string{"loop", "ram", "zram", "sr", "dm-"}

// SolidStateDevices returns block devices under root whose
// queue/rotational flag is 0, in name order.
func SolidStateDevices(root string) []string {
	blockDir := filepath.Join(root, "sys", "block")
	entries, err := os.ReadDir(blockDir)
	if err != nil {
		return nil
	}

	return lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if lo.ContainsBy(virtualDevicePrefixes, func(p string) bool { return strings.HasPrefix(e.Name(), p) }) {
			return "", false
		}
		data, err := os.ReadFile(filepath.Join(blockDir, e.Name(), "queue", "rotational"))
		if err != nil {
			return "", false
		}
		return e.Name(), strings.TrimSpace(string(data)) == "0"
	})
}

func logInfo(l *logging.Logger, msg string, args ...interface{}) {
	if l != nil {
		l.Info(msg, args...)
	}
}

func logWarn(l *logging.Logger, msg string, args ...interface{}) {
	if l != nil {
		l.Warn(msg, args...)
	}
}
