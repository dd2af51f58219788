package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
)

// PrettyFormatter renders a run summary with lipgloss styling.
type PrettyFormatter struct{}

// Format writes the summary to w.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *history.Record) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(r *history.Record) string {
	var lines []string

	lines = append(lines, TitleStyle.Render("Optimization summary"))
	lines = append(lines, fmt.Sprintf("%s %s  %s %s  %s %s",
		LabelStyle.Render("Distro:"), ValueStyle.Render(orUnknown(r.DistroID)),
		LabelStyle.Render("Packages:"), ValueStyle.Render(r.PackageManager),
		LabelStyle.Render("Kernel:"), ValueStyle.Render(orUnknown(r.KernelRelease))))

	mode := r.Mode
	if r.DryRun {
		mode += " (dry run)"
	}
	lines = append(lines, fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("Mode:"), ValueStyle.Render(mode),
		LabelStyle.Render("Run:"), MutedStyle.Render(r.ShortID())))

	if r.Aborted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run aborted: unsupported distribution"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *history.Record) string {
	if len(r.Outcomes) == 0 {
		return MutedStyle.Render("  No actions were run") + "\n"
	}

	width := len("ACTION")
	for _, o := range r.Outcomes {
		if len(o.Title) > width {
			width = len(o.Title)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("ACTION", width)),
		TableHeaderStyle.Render(padRight("STATUS", 8)),
		TableHeaderStyle.Render(padRight("CMDS", 4)),
		TableHeaderStyle.Render("DETAIL")))

	for _, o := range r.Outcomes {
		failed := 0
		for _, c := range o.Commands {
			if !c.OK() {
				failed++
			}
		}

		detail := o.Reason
		if failed > 0 {
			detail = ErrorStyle.Render(fmt.Sprintf("%d failed", failed))
		}

		sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			ValueStyle.Render(padRight(o.Title, width)),
			StatusStyle(o.Status).Render(padRight(o.Status, 8)),
			padRight(fmt.Sprintf("%d", len(o.Commands)), 4),
			MutedStyle.Render(detail)))
	}

	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *history.Record) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Applied:"), SuccessStyle.Render(fmt.Sprintf("%d", r.CountStatus("applied")))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Skipped:"), WarningStyle.Render(fmt.Sprintf("%d", r.CountStatus("skipped")))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Declined:"), MutedStyle.Render(fmt.Sprintf("%d", r.CountStatus("declined")))),
	}

	failedStyle := MutedStyle
	if r.FailedCommands() > 0 {
		failedStyle = ErrorStyle
	}
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Failed commands:"), failedStyle.Render(fmt.Sprintf("%d", r.FailedCommands()))))

	if d := r.Duration(); d > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Took:"), ValueStyle.Render(formatDuration(d))))
	}

	content := strings.Join(parts, "  ")
	if r.LogPath != "" {
		content += "\n" + MutedStyle.Render("Log: "+r.LogPath)
	}
	return FooterBox.Render(content)
}

// PlainFormatter renders a run summary without styling.
type PlainFormatter struct{}

// Format writes the summary to w.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *history.Record) error {
	fmt.Fprintf(w, "run %s distro=%s packages=%s kernel=%s mode=%s dry_run=%t\n",
		r.ID, orUnknown(r.DistroID), r.PackageManager, orUnknown(r.KernelRelease), r.Mode, r.DryRun)

	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%d", o.Category, o.Status, len(o.Commands))
		if o.Reason != "" {
			fmt.Fprintf(w, "\t%s", o.Reason)
		}
		w.WriteByte('\n')

		for _, c := range o.Commands {
			if c.OK() {
				continue
			}
			status := fmt.Sprintf("exit %d", c.ExitCode)
			if c.Error != "" && c.ExitCode < 0 {
				status = c.Error
			}
			fmt.Fprintf(w, "  failed: %s (%s)\n", c.Command, status)
		}
	}

	fmt.Fprintf(w, "applied=%d skipped=%d declined=%d failed_commands=%d\n",
		r.CountStatus("applied"), r.CountStatus("skipped"), r.CountStatus("declined"), r.FailedCommands())
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure formatters implement Formatter.
var (
	_ Formatter = (*PrettyFormatter)(nil)
	_ Formatter = (*PlainFormatter)(nil)
)
