// Package prompt reads operator decisions from the terminal.
//
// Prompts never reject input: an empty line or end of input selects the
// default, and anything unrecognised falls back to a fixed answer. A
// cancelled context ends a pending prompt at once with a negative answer.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Mode is how the action catalog is applied.
type Mode int

const (
	// Full runs every action without asking.
	Full Mode = iota
	// StepByStep asks before each action.
	StepByStep
)

// String returns the mode name.
func (m Mode) String() string {
	if m == StepByStep {
		return "step-by-step"
	}
	return "full"
}

var questionStyle = lipgloss.NewStyle().Bold(true)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan string
}

// New returns a Prompter reading from in and writing to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, lines: make(chan string)}
}

// ChooseMode shows the mode menu. "2" selects StepByStep; anything else,
// including empty input or a cancelled ctx, selects Full.
func (p *Prompter) ChooseMode(ctx context.Context) Mode {
	fmt.Fprintln(p.out, "\nSelect optimization mode:")
	fmt.Fprintln(p.out, "  1) Full optimization (apply everything)")
	fmt.Fprintln(p.out, "  2) Step-by-step (confirm each category)")
	fmt.Fprint(p.out, questionStyle.Render("Choice [1]: "))

	if answer, _ := p.readLine(ctx); answer == "2" {
		return StepByStep
	}
	return Full
}

// YesNo asks question and returns def for empty input or end of input.
// "y" or "Y" means yes; any other answer means no. A cancelled ctx means no
// whatever def is.
func (p *Prompter) YesNo(ctx context.Context, question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprint(p.out, questionStyle.Render(question+" "+hint+": "))

	answer, ok := p.readLine(ctx)
	if !ok {
		return false
	}
	if answer == "" {
		return def
	}
	return answer == "y" || answer == "Y"
}

// readLine returns the next trimmed line, or "" at end of input. ok is
// false when ctx was cancelled first.
func (p *Prompter) readLine(ctx context.Context) (line string, ok bool) {
	p.start.Do(func() { go p.read() })

	select {
	case line, open := <-p.lines:
		if !open {
			// EOF behaves like an empty answer; keep the prompt line terminated.
			fmt.Fprintln(p.out)
			return "", true
		}
		return strings.TrimSpace(line), true
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", false
	}
}

// read feeds input lines to readLine. A blocking terminal read cannot be
// interrupted, so it runs on its own goroutine; the channel is closed at
// end of input.
func (p *Prompter) read() {
	defer close(p.lines)
	for {
		line, err := p.in.ReadString('\n')
		if line != "" {
			p.lines <- line
		}
		if err != nil {
			return
		}
	}
}
