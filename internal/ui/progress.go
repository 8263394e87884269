package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// barWidth is the width of the animated bar in cells.
const barWidth = 32

type progressImpl struct {
	theme    *Theme
	headless *HeadlessManager
	writer   io.Writer
}

// NewProgress returns a Progress writing to stderr, so stdout stays
// machine readable.
func NewProgress(theme *Theme, hm *HeadlessManager) Progress {
	return newProgressImpl(theme, hm, os.Stderr)
}

func newProgressImpl(theme *Theme, hm *HeadlessManager, w io.Writer) *progressImpl {
	return &progressImpl{theme: theme, headless: hm, writer: w}
}

// Start shows an animated bar on a terminal and one line per step
// otherwise.
func (p *progressImpl) Start(title string, total int) ProgressBar {
	if p.headless.IsHeadless() || p.theme.NoColor {
		return &lineBar{theme: p.theme, title: title, total: total, w: p.writer}
	}
	return startTeaBar(newBarModel(p.theme, title, total), p.writer)
}

// barStepMsg carries a finished step into the running program.
type barStepMsg struct {
	done int
	item string
}

type barDoneMsg struct{}

// barModel draws a spinner, the title, the bar and the latest item.
// Finished items scroll above it with a check mark.
type barModel struct {
	spin     spinner.Model
	bar      progress.Model
	check    string
	title    string
	total    int
	done     int
	item     string
	finished bool
}

func newBarModel(theme *Theme, title string, total int) barModel {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Colors.Primary))
	return barModel{
		spin:  s,
		bar:   progress.New(progress.WithGradient(theme.Colors.Primary, theme.Colors.Secondary), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		check: theme.SymSuccess(),
		title: title,
		total: total,
	}
}

func (m barModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case barStepMsg:
		m.done = min(max(msg.done, m.done), m.total)
		m.item = msg.item
		return m, tea.Printf("%s %s", m.check, msg.item)
	case barDoneMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		m.bar = pm.(progress.Model)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.finished = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m barModel) View() string {
	if m.finished {
		return ""
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	return fmt.Sprintf("%s %s %s %d/%d %s\n", m.spin.View(), m.title, m.bar.ViewAs(pct), m.done, m.total, m.item)
}

// teaBar runs a barModel in its own program.
type teaBar struct {
	program *tea.Program
	once    sync.Once
}

// @MX:WARN: [AUTO] Done blocks on program.Wait until the program goroutine exits
// @MX:REASON: [AUTO] repair output must not interleave with the result card
func startTeaBar(m barModel, w io.Writer) *teaBar {
	p := tea.NewProgram(m, tea.WithOutput(w), tea.WithInput(nil))
	go func() {
		_, _ = p.Run()
	}()
	return &teaBar{program: p}
}

func (b *teaBar) Step(done int, item string) {
	b.program.Send(barStepMsg{done: done, item: item})
}

func (b *teaBar) Done() {
	b.once.Do(func() {
		b.program.Send(barDoneMsg{})
		b.program.Wait()
	})
}

// lineBar prints "title [done/total] item" per step.
type lineBar struct {
	theme *Theme
	title string
	total int
	w     io.Writer
}

func (b *lineBar) Step(done int, item string) {
	_, _ = fmt.Fprintf(b.w, "%s [%d/%d] %s\n", b.theme.Muted().Render(b.title), min(done, b.total), b.total, item)
}

func (b *lineBar) Done() {}

// StepTracker adapts a (done, total, item) callback onto a progress bar.
// The bar is created on the first step, so nothing is shown when no step
// runs. finish completes the bar if one was started.
func StepTracker(p Progress, title string) (step func(done, total int, item string), finish func()) {
	var bar ProgressBar
	step = func(done, total int, item string) {
		if bar == nil {
			bar = p.Start(title, total)
		}
		bar.Step(done, item)
	}
	finish = func() {
		if bar != nil {
			bar.Done()
		}
	}
	return step, finish
}
