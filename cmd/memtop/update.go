package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joshuapare/memkit/internal/frontend"
	"github.com/joshuapare/memkit/internal/logger"
)

// opOrder fixes the row order of the counters table.
var opOrder = frontend.Ops()

// statusTimeout is how long a status message stays visible.
const statusTimeout = 2 * time.Second

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gauge.Width = max(10, msg.Width-24)
		return m, nil

	case tickMsg:
		m = m.refresh(time.Time(msg))
		return m, tick(m.interval)

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// refresh takes a new sample and rebuilds the derived views.
func (m Model) refresh(at time.Time) Model {
	prev := m.sample
	m.sample = takeSample(m.heap, m.workload, at)

	m.history = append(m.history, m.sample.Committed)
	if len(m.history) > historyLen {
		m.history = m.history[len(m.history)-historyLen:]
	}

	m.table.SetRows(counterRows(prev, m.sample))
	return m
}

// counterRows lists every operation with its total and its rate since prev.
func counterRows(prev, cur Sample) []table.Row {
	elapsed := cur.At.Sub(prev.At).Seconds()
	rows := make([]table.Row, 0, len(opOrder))
	for _, op := range opOrder {
		name := op.String()
		calls := cur.Counters[name]
		rate := "-"
		if elapsed > 0 && prev.Counters != nil && calls >= prev.Counters[name] {
			rate = printer.Sprintf("%.0f", float64(calls-prev.Counters[name])/elapsed)
		}
		rows = append(rows, table.Row{name, formatCount(calls), rate})
	}
	return rows
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The help overlay swallows everything except its close keys.
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Close, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		if m.workload.TogglePaused() {
			return m.setStatus("Workload paused")
		}
		return m.setStatus("Workload resumed")

	case key.Matches(msg, m.keys.More):
		n := m.workload.SetActive(m.workload.Active() + 1)
		return m.setStatus(fmt.Sprintf("%d of %d workers active", n, m.workload.Workers()))

	case key.Matches(msg, m.keys.Fewer):
		n := m.workload.SetActive(m.workload.Active() - 1)
		return m.setStatus(fmt.Sprintf("%d of %d workers active", n, m.workload.Workers()))

	case key.Matches(msg, m.keys.Flush):
		cached := m.heap.CachedBytes()
		m.heap.FlushCacheAll()
		logger.Debug("flushed caches", "bytes", cached)
		return m.setStatus("Flushed " + formatBytes(int64(cached)) + " of cached regions")

	case key.Matches(msg, m.keys.Huge):
		if m.heap.EnableHugePages() {
			return m.setStatus("Huge pages enabled")
		}
		return m.setStatus("Huge pages unavailable; staying on regular pages")

	case key.Matches(msg, m.keys.Reset):
		m.history = nil
		return m.setStatus("History cleared")

	case key.Matches(msg, m.keys.Copy):
		data, err := json.MarshalIndent(m.sample, "", "  ")
		if err == nil {
			err = clipboard.WriteAll(string(data))
		}
		if err != nil {
			logger.Warn("copy snapshot failed", "error", err)
			return m.setStatus("Copy failed: " + err.Error())
		}
		return m.setStatus("Snapshot copied to clipboard")
	}

	return m, nil
}

func (m Model) setStatus(s string) (tea.Model, tea.Cmd) {
	m.statusMessage = s
	return m, clearStatusAfter(statusTimeout)
}
