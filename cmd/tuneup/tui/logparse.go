package tui

import (
	"regexp"
	"strings"
)

// LineKind classifies a run log line for styling and filtering.
type LineKind int

const (
	// KindOutput is raw command output or anything unrecognised.
	KindOutput LineKind = iota
	// KindSection is a "[Title]" header.
	KindSection
	// KindCommand is a "$ argv" line written before a command runs.
	KindCommand
	// KindOK is the status line of a successful command.
	KindOK
	// KindFailed is the status line of a failed command.
	KindFailed
	// KindWarn is a warning, error or skip message.
	KindWarn
	// KindNote is any other timestamped journal line.
	KindNote
)

// Line is one parsed log line.
type Line struct {
	Kind      LineKind
	Timestamp string
	Text      string
}

var (
	sectionRE   = regexp.MustCompile(`^\[(.+)\]$`)
	journalRE   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) (.*)$`)
	componentRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\S+ (DEBU|INFO|WARN|ERRO|FATA) `)
	statusRE    = regexp.MustCompile(`^(ok|dry-run|exit \d+|error: .*) \([^)]*\)$`)
)

// ParseLog splits a run log into classified lines.
func ParseLog(content string) []Line {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return nil
	}

	raw := strings.Split(content, "\n")
	lines := make([]Line, 0, len(raw))
	for _, s := range raw {
		lines = append(lines, parseLine(s))
	}
	return lines
}

func parseLine(s string) Line {
	if m := sectionRE.FindStringSubmatch(s); m != nil {
		return Line{Kind: KindSection, Text: m[1]}
	}

	if m := componentRE.FindStringSubmatch(s); m != nil {
		kind := KindNote
		if m[1] == "WARN" || m[1] == "ERRO" || m[1] == "FATA" {
			kind = KindWarn
		}
		return Line{Kind: kind, Text: s}
	}

	m := journalRE.FindStringSubmatch(s)
	if m == nil {
		return Line{Kind: KindOutput, Text: s}
	}

	ts, text := m[1], m[2]
	kind := KindNote
	switch {
	case strings.HasPrefix(text, "$ "), strings.HasPrefix(text, "[dry-run] $ "):
		kind = KindCommand
	case statusRE.MatchString(text):
		if strings.HasPrefix(text, "ok") || strings.HasPrefix(text, "dry-run") {
			kind = KindOK
		} else {
			kind = KindFailed
		}
	case strings.HasPrefix(text, "Skipping:"),
		strings.HasPrefix(text, "Warning:"),
		strings.HasPrefix(text, "Aborted:"),
		strings.HasPrefix(text, "Operator declined"):
		kind = KindWarn
	}

	return Line{Kind: kind, Timestamp: ts, Text: text}
}

// Sections returns the indexes of section header lines.
func Sections(lines []Line) []int {
	var idx []int
	for i, l := range lines {
		if l.Kind == KindSection {
			idx = append(idx, i)
		}
	}
	return idx
}

// Problems reports whether l belongs in the problems-only view.
func (l Line) Problems() bool {
	return l.Kind == KindSection || l.Kind == KindFailed || l.Kind == KindWarn
}
