package main

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
)

// helpView is the keyboard shortcut modal drawn over the main screen.
type helpView struct {
	keys KeyMap
	help help.Model
}

func newHelpView(keys KeyMap, h help.Model) *helpView {
	h.ShowAll = true
	return &helpView{keys: keys, help: h}
}

func (v *helpView) Init() tea.Cmd                       { return nil }
func (v *helpView) Update(tea.Msg) (tea.Model, tea.Cmd) { return v, nil }

func (v *helpView) View() string {
	return modalStyle.Render(
		helpTitleStyle.Render("Keyboard Shortcuts") + "\n" +
			v.help.View(v.keys) + "\n\n" +
			statusStyle.Render("Press ? or esc to close"),
	)
}
