package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
)

// FormatHistory writes a table of past runs, newest first.
func FormatHistory(w *bytes.Buffer, records []history.Record, now time.Time) {
	if len(records) == 0 {
		w.WriteString(MutedStyle.Render("No runs recorded yet"))
		w.WriteString("\n")
		return
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("ID", 8)),
		TableHeaderStyle.Render(padRight("WHEN", 16)),
		TableHeaderStyle.Render(padRight("DISTRO", 12)),
		TableHeaderStyle.Render(padRight("MODE", 12)),
		TableHeaderStyle.Render("RESULT"))

	for i := range records {
		r := &records[i]
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			MutedStyle.Render(padRight(r.ShortID(), 8)),
			ValueStyle.Render(padRight(humanize.RelTime(r.StartedAt, now, "ago", "from now"), 16)),
			ValueStyle.Render(padRight(orUnknown(r.DistroID), 12)),
			ValueStyle.Render(padRight(runMode(r), 12)),
			resultSummary(r))
	}
}

func runMode(r *history.Record) string {
	if r.DryRun {
		return r.Mode + "*"
	}
	return r.Mode
}

func resultSummary(r *history.Record) string {
	if r.Aborted {
		return WarningStyle.Render("aborted")
	}

	parts := []string{SuccessStyle.Render(fmt.Sprintf("%d applied", r.CountStatus("applied")))}
	if n := r.CountStatus("skipped"); n > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d skipped", n)))
	}
	if n := r.CountStatus("declined"); n > 0 {
		parts = append(parts, MutedStyle.Render(fmt.Sprintf("%d declined", n)))
	}
	if n := r.FailedCommands(); n > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	return strings.Join(parts, ", ")
}

// FormatRecord writes the full detail of one run, including every command.
func FormatRecord(w *bytes.Buffer, r *history.Record) {
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Run:"), ValueStyle.Render(r.ID))
	fmt.Fprintf(w, "%s %s (%s)\n", LabelStyle.Render("Started:"),
		ValueStyle.Render(r.StartedAt.Local().Format(time.RFC1123)), formatDuration(r.Duration()))
	fmt.Fprintf(w, "%s %s / %s / kernel %s\n", LabelStyle.Render("Host:"),
		orUnknown(r.DistroID), r.PackageManager, orUnknown(r.KernelRelease))
	fmt.Fprintf(w, "%s %s", LabelStyle.Render("Mode:"), r.Mode)
	if r.DryRun {
		w.WriteString(" (dry run)")
	}
	w.WriteString("\n")

	for _, f := range r.Findings {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("Finding:"), f)
	}
	if r.Aborted {
		w.WriteString(WarningStyle.Render("Aborted: unsupported distribution declined") + "\n")
	}

	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "\n%s %s\n", TitleStyle.Render("["+o.Title+"]"), StatusStyle(o.Status).Render(o.Status))
		if o.Reason != "" {
			fmt.Fprintf(w, "  %s\n", MutedStyle.Render(o.Reason))
		}
		for _, c := range o.Commands {
			mark := SuccessStyle.Render("ok")
			if c.DryRun {
				mark = MutedStyle.Render("dry-run")
			} else if !c.OK() {
				mark = ErrorStyle.Render(fmt.Sprintf("exit %d", c.ExitCode))
			}
			fmt.Fprintf(w, "  $ %s  %s %s\n", c.Command, mark, MutedStyle.Render(formatDuration(c.Duration)))
		}
		for _, n := range o.Notes {
			fmt.Fprintf(w, "  %s\n", MutedStyle.Render(n))
		}
	}

	if r.RebootRequested {
		w.WriteString("\n" + LabelStyle.Render("Reboot requested") + "\n")
	}
	if r.LogPath != "" {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Log:"), r.LogPath)
	}
}
