package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/tuneup/pkg/tuneup/distro"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
)

// FormatProbe writes what the prober found without changing anything.
func FormatProbe(w *bytes.Buffer, p distro.Profile, report probe.Report) {
	support := SuccessStyle.Render("supported")
	if !distro.IsSupported(p.ID) {
		support = WarningStyle.Render("unsupported")
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s (%s)", LabelStyle.Render("Distro:"), ValueStyle.Render(orUnknown(p.ID)), support))
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Package manager:"), ValueStyle.Render(p.PackageManager.String())))
	lines = append(lines, fmt.Sprintf("  %s %s", LabelStyle.Render("update: "), commandOrNone(p.Update.Argv())))
	lines = append(lines, fmt.Sprintf("  %s %s", LabelStyle.Render("install:"), commandOrNone(p.Install.Argv())))
	lines = append(lines, fmt.Sprintf("  %s %s", LabelStyle.Render("query:  "), commandOrNone(p.Query.Argv())))
	lines = append(lines, fmt.Sprintf("%s %s %s", LabelStyle.Render("Kernel:"), ValueStyle.Render(orUnknown(report.KernelRelease)), MutedStyle.Render(report.Machine)))

	ssds := MutedStyle.Render("none")
	if report.HasSSD() {
		ssds = ValueStyle.Render(strings.Join(report.SSDs, ", "))
	}
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("SSDs:"), ssds))

	for _, gpu := range report.GPUs {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("GPU:"), ValueStyle.Render(gpu)))
	}

	w.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
	w.WriteString("\n")

	if !distro.IsSupported(p.ID) {
		writeSupported(w)
	}

	if len(report.Findings) == 0 {
		w.WriteString(SuccessStyle.Render("No findings") + "\n")
		return
	}
	for _, category := range report.Findings.Categories() {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render(category+":"), report.Findings[category])
	}
}

func commandOrNone(argv []string) string {
	if argv[0] == "" {
		return MutedStyle.Render("(none)")
	}
	return ValueStyle.Render(strings.Join(argv, " "))
}

// writeSupported lists the distribution ids each package manager covers.
func writeSupported(w *bytes.Buffer) {
	w.WriteString(TitleStyle.Render("Supported distributions") + "\n")
	for _, pm := range distro.Managers() {
		fmt.Fprintf(w, "  %s %s\n",
			LabelStyle.Render(padRight(pm.String()+":", 8)),
			strings.Join(distro.SupportedIDs(pm), ", "))
	}
	w.WriteString("\n")
}
