package main

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joshuapare/memkit/pkg/mem"
)

// historyLen is the number of committed totals kept for the sparkline.
const historyLen = 60

// Sample is one reading of the heap and its workload.
type Sample struct {
	At        time.Time         `json:"at"`
	Committed int64             `json:"committed"`
	Reserved  int64             `json:"reserved"`
	Peak      int64             `json:"peak"`
	Cached    uint64            `json:"cached"`
	HugePages bool              `json:"huge_pages"`
	Privilege string            `json:"privilege"`
	Active    int               `json:"active_workers"`
	Workers   int               `json:"workers"`
	Paused    bool              `json:"paused"`
	Ops       uint64            `json:"ops"`
	Failed    uint64            `json:"failed"`
	Counters  map[string]uint64 `json:"counters"`
}

// takeSample reads the heap and workload counters.
func takeSample(heap *mem.Heap, w *Workload, at time.Time) Sample {
	return Sample{
		At:        at,
		Committed: heap.TotalCommitted(),
		Reserved:  heap.TotalReserved(),
		Peak:      heap.PeakCommitted(),
		Cached:    heap.CachedBytes(),
		HugePages: heap.HugePages(),
		Privilege: mem.PrivilegeState(),
		Active:    w.Active(),
		Workers:   w.Workers(),
		Paused:    w.Paused(),
		Ops:       w.Ops(),
		Failed:    w.Failed(),
		Counters:  heap.Counters(),
	}
}

// Model is the main application model
type Model struct {
	heap     *mem.Heap
	workload *Workload
	interval time.Duration

	keys    KeyMap
	help    help.Model
	table   table.Model
	gauge   progress.Model
	sample  Sample
	history []int64

	width  int
	height int

	// Help overlay
	showHelp bool

	// Status message for temporary feedback
	statusMessage string
}

// tickMsg triggers a new sample.
type tickMsg time.Time

// clearStatusMsg removes the status message.
type clearStatusMsg struct{}

// NewModel creates the monitor for heap and its workload.
func NewModel(heap *mem.Heap, w *Workload, interval time.Duration) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Operation", Width: 20},
			{Title: "Calls", Width: 16},
			{Title: "Rate/s", Width: 12},
		}),
		table.WithHeight(len(opOrder)+1),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(primaryColor).Bold(true)
	styles.Selected = styles.Cell
	t.SetStyles(styles)

	m := Model{
		heap:     heap,
		workload: w,
		interval: interval,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		table:    t,
		gauge:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	m.sample = takeSample(heap, w, time.Now())
	return m
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
