// Package ui renders progress for long-running CLI tasks.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(2)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 100 * time.Millisecond

type Task func(context.Context) ([]string, error)

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
	cancel  context.CancelFunc
	run     tea.Cmd
}

func newModel(ctx context.Context, title string, task Task) (model, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return model{
		title:  title,
		cancel: cancel,
		run: func() tea.Msg {
			details, err := task(ctx)
			return doneMsg{details: details, err: err}
		},
	}, ctx
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Init() tea.Cmd { return tea.Batch(m.run, tick()) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancel()
		}
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if !m.done {
		return fmt.Sprintf("%s %s\n", spinnerFrames[m.frame], titleStyle.Render(m.title))
	}
	return Summary(m.title, m.details, m.err)
}

// Summary renders the final status block shown after a task completes.
func Summary(title string, details []string, err error) string {
	var b strings.Builder
	if err != nil {
		b.WriteString(errStyle.Render("✗ " + title))
	} else {
		b.WriteString(okStyle.Render("✓ " + title))
	}
	b.WriteString("\n")
	for _, d := range details {
		b.WriteString(detailStyle.Render(d))
		b.WriteString("\n")
	}
	if err != nil {
		b.WriteString(detailStyle.Render("error: " + err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// Run executes task behind a spinner and returns its result once it finishes.
func Run(ctx context.Context, title string, task Task) ([]string, error) {
	m, _ := newModel(ctx, title, task)
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		m.cancel()
		return nil, fmt.Errorf("run ui: %w", err)
	}
	fm := final.(model)
	return fm.details, fm.err
}
