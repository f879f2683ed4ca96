// Package ui provides the terminal progress view for a running
// traversal. It is strictly a consumer of the engine's progress events:
// the core emits, this renders, and closing the view is what surfaces a
// dead reporting channel to the walker.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	canopyprogress "github.com/vanderheijden86/canopy/pkg/progress"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// eventMsg wraps one engine event for the bubbletea loop.
type eventMsg canopyprogress.Event

// channelClosedMsg signals that the engine stopped emitting.
type channelClosedMsg struct{}

// Model is the bubbletea model rendering traversal progress.
type Model struct {
	events <-chan canopyprogress.Event

	spinner  spinner.Model
	bar      progress.Model
	title    string
	visited  int
	total    int
	leaves   int
	current  string
	warnings int
	done     bool
	failed   string
}

// NewModel builds a progress view over the reporter's event channel.
func NewModel(title string, events <-chan canopyprogress.Event) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		events:  events,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		title:   title,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		width := msg.Width - 8
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		m.bar.Width = width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.applyEvent(canopyprogress.Event(msg))

	case channelClosedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) applyEvent(ev canopyprogress.Event) (tea.Model, tea.Cmd) {
	switch {
	case ev.Progress != nil:
		m.visited = ev.Progress.Visited
		m.total = ev.Progress.Total
		m.leaves = ev.Progress.AggregateLeafCount
		m.current = strings.Join(ev.Progress.CurrentPath, " / ")
		return m, m.waitForEvent()

	case ev.Completion != nil:
		m.visited = ev.Completion.NodesVisited
		m.leaves = ev.Completion.AggregateLeafCount
		m.warnings = len(ev.Completion.Warnings)
		m.done = true
		return m, tea.Quit

	case ev.Error != "":
		m.failed = ev.Error
		return m, tea.Quit
	}
	return m, m.waitForEvent()
}

// Ratio returns walk completion in [0, 1]. Visited counts every node
// while total counts top-level roots, so the ratio saturates once the
// walk has gone deeper than the root list.
func (m Model) Ratio() float64 {
	if m.total == 0 {
		return 0
	}
	r := float64(m.visited) / float64(m.total)
	if r > 1 {
		r = 1
	}
	return r
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	switch {
	case m.failed != "":
		sb.WriteString(errorStyle.Render("traversal failed: " + m.failed))
		sb.WriteString("\n")
	case m.done:
		sb.WriteString(successStyle.Render("traversal complete"))
		sb.WriteString(fmt.Sprintf("  %s nodes, %s items",
			countStyle.Render(fmt.Sprintf("%d", m.visited)),
			countStyle.Render(fmt.Sprintf("%d", m.leaves))))
		if m.warnings > 0 {
			sb.WriteString("  " + warnStyle.Render(fmt.Sprintf("%d warnings (counts are lower bounds)", m.warnings)))
		}
		sb.WriteString("\n")
	default:
		sb.WriteString(m.spinner.View())
		sb.WriteString(fmt.Sprintf(" %d/%d roots  %s items\n",
			m.visited, m.total, countStyle.Render(fmt.Sprintf("%d", m.leaves))))
		sb.WriteString(m.bar.ViewAs(m.Ratio()))
		sb.WriteString("\n")
		if m.current != "" {
			sb.WriteString(pathStyle.Render("  " + m.current))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

var _ tea.Model = Model{}
