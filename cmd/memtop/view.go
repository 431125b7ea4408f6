package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"
)

// View renders the entire UI
func (m Model) View() string {
	if m.showHelp {
		// Recreated on each render since Update returns new models.
		return overlay.New(
			newHelpView(m.keys, m.help),
			newMainView(m),
			overlay.Center,
			overlay.Center,
			0,
			0,
		).View()
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderMemory(),
		m.renderCounters(),
		m.renderStatus(),
	)
}

func (m Model) renderHeader() string {
	state := runningStyle.Render("running")
	if m.sample.Paused {
		state = pausedStyle.Render("paused")
	}
	return headerStyle.Render("memkit monitor") + " " + state
}

func (m Model) renderMemory() string {
	s := m.sample

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	ratio := 0.0
	if s.Peak > 0 {
		ratio = float64(s.Committed) / float64(s.Peak)
	}

	huge := "off"
	if s.HugePages {
		huge = "on"
	}

	lines := []string{
		paneTitleStyle.Render("Memory"),
		row("Committed", formatBytes(s.Committed)),
		row("Reserved", formatBytes(s.Reserved)),
		row("Peak", formatBytes(s.Peak)),
		row("Cached", formatBytes(int64(s.Cached))),
		labelStyle.Render("of peak") + m.gauge.ViewAs(min(ratio, 1)),
		labelStyle.Render("history") + sparkStyle.Render(sparkline(m.history)),
		"",
		row("Huge pages", fmt.Sprintf("%s (privilege %s)", huge, s.Privilege)),
		row("Workers", fmt.Sprintf("%d of %d active", s.Active, s.Workers)),
		row("Operations", formatCount(s.Ops)+" ("+formatCount(s.Failed)+" failed)"),
	}
	return paneStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderCounters() string {
	return paneStyle.Render(paneTitleStyle.Render("Calls") + "\n" + m.table.View())
}

func (m Model) renderStatus() string {
	if m.statusMessage != "" {
		return statusMessageStyle.Render(m.statusMessage)
	}
	return statusStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

// mainView wraps the main screen for use as overlay background.
type mainView struct {
	model Model
}

func newMainView(m Model) *mainView { return &mainView{model: m} }

func (v *mainView) Init() tea.Cmd                       { return nil }
func (v *mainView) Update(tea.Msg) (tea.Model, tea.Cmd) { return v, nil }
func (v *mainView) View() string                        { return v.model.renderMain() }
