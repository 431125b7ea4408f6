package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TestHelper provides utilities for testing TUI components
type TestHelper struct {
	model Model
	cmd   tea.Cmd
}

// NewTestHelper creates a test helper around a model
func NewTestHelper(m Model) *TestHelper {
	return &TestHelper{model: m}
}

// SendKeyRune simulates a character key press
func (h *TestHelper) SendKeyRune(r rune) *TestHelper {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// SendKey simulates a special key press
func (h *TestHelper) SendKey(keyType tea.KeyType) *TestHelper {
	return h.send(tea.KeyMsg{Type: keyType})
}

// SendWindowSize simulates a window resize
func (h *TestHelper) SendWindowSize(width, height int) *TestHelper {
	return h.send(tea.WindowSizeMsg{Width: width, Height: height})
}

// Tick delivers a refresh as if the timer fired at t
func (h *TestHelper) Tick(t time.Time) *TestHelper {
	return h.send(tickMsg(t))
}

func (h *TestHelper) send(msg tea.Msg) *TestHelper {
	updated, cmd := h.model.Update(msg)
	h.model = updated.(Model)
	h.cmd = cmd
	return h
}

// Model returns the current model state
func (h *TestHelper) Model() Model {
	return h.model
}

// LastCmd returns the command produced by the last message
func (h *TestHelper) LastCmd() tea.Cmd {
	return h.cmd
}
