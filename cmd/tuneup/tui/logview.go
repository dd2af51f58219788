package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// headerHeight and footerHeight are the rows around the viewport.
const (
	headerHeight = 2
	footerHeight = 1
)

var errWatcherClosed = errors.New("log watcher closed")

// logLoadedMsg carries a freshly read log.
type logLoadedMsg struct {
	lines []Line
	err   error
}

// logChangedMsg is sent when the followed log file changes.
type logChangedMsg struct{}

// watchErrMsg reports a watcher failure; following stops.
type watchErrMsg struct{ err error }

// LogModel is the run log viewer.
type LogModel struct {
	path    string
	follow  bool
	watcher *fsnotify.Watcher

	lines        []Line
	problemsOnly bool
	sections     []int
	err          error

	viewport viewport.Model
	ready    bool
	width    int
}

// NewLogModel returns a viewer for path. A non-nil watcher enables follow
// mode; it must already watch the directory holding path.
func NewLogModel(path string, watcher *fsnotify.Watcher) LogModel {
	return LogModel{
		path:    path,
		follow:  watcher != nil,
		watcher: watcher,
		width:   80,
	}
}

// Init loads the log and, when following, starts waiting for changes.
func (m LogModel) Init() tea.Cmd {
	if m.follow {
		return tea.Batch(loadLog(m.path), waitForChange(m.watcher, m.path))
	}
	return loadLog(m.path)
}

// Update handles messages for the viewer.
func (m LogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - headerHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case logLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.lines = msg.lines
		}
		atBottom := m.viewport.AtBottom()
		m.refresh()
		if m.follow && atBottom {
			m.viewport.GotoBottom()
		}
		return m, nil

	case logChangedMsg:
		return m, tea.Batch(loadLog(m.path), waitForChange(m.watcher, m.path))

	case watchErrMsg:
		m.follow = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "e":
			m.problemsOnly = !m.problemsOnly
			m.refresh()
			m.viewport.GotoTop()
			return m, nil
		case "n":
			m.jumpSection(1)
			return m, nil
		case "p":
			m.jumpSection(-1)
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the viewer.
func (m LogModel) View() string {
	if !m.ready {
		return "Loading " + m.path + "..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m LogModel) headerView() string {
	title := titleStyle.Render(" " + filepath.Base(m.path) + " ")
	info := mutedTextStyle.Render(m.path)
	if m.follow {
		info += " " + okStyle.Render("[following]")
	}
	if m.problemsOnly {
		info += " " + warnStyle.Render("[problems only]")
	}
	return title + info + "\n" + renderDivider(m.width)
}

func (m LogModel) footerView() string {
	if m.err != nil {
		return failedStyle.Render("Error: " + m.err.Error())
	}

	help := strings.Join([]string{
		helpKey("↑/↓", "scroll"),
		helpKey("n/p", "section"),
		helpKey("e", "problems"),
		helpKey("g/G", "top/bottom"),
		helpKey("q", "quit"),
	}, "  ")

	pct := fmt.Sprintf("%3.0f%%", m.viewport.ScrollPercent()*100)
	padding := m.width - lipgloss.Width(help) - lipgloss.Width(pct)
	if padding < 1 {
		padding = 1
	}
	return help + strings.Repeat(" ", padding) + mutedTextStyle.Render(pct)
}

// visible returns the lines shown under the current filter.
func (m LogModel) visible() []Line {
	if !m.problemsOnly {
		return m.lines
	}
	var out []Line
	for _, l := range m.lines {
		if l.Problems() {
			out = append(out, l)
		}
	}
	return out
}

// refresh re-renders the viewport content from the parsed lines.
func (m *LogModel) refresh() {
	lines := m.visible()
	m.sections = Sections(lines)

	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = renderLine(l)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
}

// jumpSection scrolls to the next (dir > 0) or previous section header.
func (m *LogModel) jumpSection(dir int) {
	offset := m.viewport.YOffset
	if dir > 0 {
		for _, idx := range m.sections {
			if idx > offset {
				m.viewport.SetYOffset(idx)
				return
			}
		}
		return
	}
	for i := len(m.sections) - 1; i >= 0; i-- {
		if m.sections[i] < offset {
			m.viewport.SetYOffset(m.sections[i])
			return
		}
	}
}

// renderLine styles one log line.
func renderLine(l Line) string {
	var text string
	switch l.Kind {
	case KindSection:
		return sectionStyle.Render("[" + l.Text + "]")
	case KindCommand:
		text = commandStyle.Render(l.Text)
	case KindOK:
		text = okStyle.Render(l.Text)
	case KindFailed:
		text = failedStyle.Render(l.Text)
	case KindWarn:
		text = warnStyle.Render(l.Text)
	case KindOutput:
		return outputStyle.Render("  " + l.Text)
	default:
		text = l.Text
	}

	if l.Timestamp == "" {
		return text
	}
	return timestampStyle.Render(l.Timestamp) + " " + text
}

func renderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return dividerStyle.Render(strings.Repeat("─", width))
}

func helpKey(key, desc string) string {
	return helpKeyStyle.Render(key) + " " + helpDescStyle.Render(desc)
}

// loadLog reads and parses the log file.
func loadLog(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return logLoadedMsg{err: fmt.Errorf("reading log: %w", err)}
		}
		return logLoadedMsg{lines: ParseLog(string(data))}
	}
}

// waitForChange blocks until the watcher reports a change to path.
func waitForChange(w *fsnotify.Watcher, path string) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return watchErrMsg{err: errWatcherClosed}
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					return logChangedMsg{}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return watchErrMsg{err: errWatcherClosed}
				}
				return watchErrMsg{err: fmt.Errorf("watching log: %w", err)}
			}
		}
	}
}

// WatchLog returns a watcher on the directory holding path. Watching the
// directory keeps follow mode working when a new run truncates the file.
func WatchLog(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	return w, nil
}

// RunLogViewer opens the viewer on path in the alternate screen.
func RunLogViewer(path string, follow bool) error {
	var watcher *fsnotify.Watcher
	if follow {
		w, err := WatchLog(path)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		watcher = w
	}

	p := tea.NewProgram(NewLogModel(path, watcher),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
