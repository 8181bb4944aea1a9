package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/Iron-Ham/netmon/internal/tui/keymap"
	"github.com/Iron-Ham/netmon/internal/tui/styles"
	"github.com/Iron-Ham/netmon/internal/util"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the monitoring backend the TUI drives. monitor.Manager
// implements it.
type Controller interface {
	Snapshot(ctx context.Context) (traffic.Snapshot, error)
	ClearHistory(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() monitor.Status
}

// Options configures the TUI.
type Options struct {
	// Refresh is the redraw cadence.
	Refresh time.Duration
	// SortKey is the initial sort column.
	SortKey traffic.SortKey
	// MinRate hides processes below this many bytes per second in both
	// directions until "show all" is toggled. 0 shows everything.
	MinRate float64
	// MaxRows caps the number of listed processes, 0 fits the terminal.
	MaxRows int
	Logger  *logging.Logger
}

// Layout constants
const (
	pidWidth   = 8
	rateWidth  = 13
	connsWidth = 6
	// minNameWidth keeps process names readable on narrow terminals.
	minNameWidth = 16
	// cellPadding is the horizontal padding styles.TableCell adds per column.
	cellPadding = 2
	// chromeHeight is every line that is not a table row: title, totals,
	// the graph with its caption, the bordered table header and the help bar.
	chromeHeight = 9
)

// Model is the Bubble Tea model for the netmon TUI.
type Model struct {
	ctrl   Controller
	opts   Options
	keys   *keymap.Keymap
	logger *logging.Logger

	table table.Model
	// rows holds the processes in display order, parallel to the table rows.
	rows []traffic.ProcessView

	snap    traffic.Snapshot
	status  monitor.Status
	fetched bool

	sortKey traffic.SortKey
	desc    bool
	showAll bool

	width, height int
	showHelp      bool
	message       string
	messageErr    bool
}

// NewModel creates a model with the given controller.
func NewModel(ctrl Controller, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = time.Second
	}
	if opts.SortKey == "" {
		opts.SortKey = traffic.SortByIn
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	t := table.New(
		table.WithColumns(columns(80, opts.SortKey, true)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(table.Styles{
		Header:   styles.TableHeader,
		Cell:     styles.TableCell,
		Selected: styles.TableSelected,
	})

	return Model{
		ctrl:    ctrl,
		opts:    opts,
		keys:    keymap.Default(),
		logger:  opts.Logger.WithComponent("tui"),
		table:   t,
		sortKey: opts.SortKey,
		desc:    true,
		status:  ctrl.Status(),
	}
}

// Init fetches the first snapshot and starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchSnapshot(m.ctrl), tick(m.opts.Refresh))
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchSnapshot(m.ctrl), tick(m.opts.Refresh))

	case snapshotMsg:
		m.status = msg.status
		if msg.err != nil {
			m.logger.Debug("snapshot fetch failed", "error", msg.err)
			m.layout()
			return m, nil
		}
		m.snap = msg.snap
		m.fetched = true
		m.layout()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.logger.Warn("action failed", "action", msg.action, "error", msg.err)
			m.setMessage(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		} else {
			m.setMessage(msg.action+" done", false)
		}
		m.status = m.ctrl.Status()
		return m, fetchSnapshot(m.ctrl)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cmd, ok := m.keys.Lookup(msg)
	if !ok {
		// Everything else (arrows, paging) moves the table cursor.
		var tcmd tea.Cmd
		m.table, tcmd = m.table.Update(msg)
		return m, tcmd
	}

	switch cmd {
	case keymap.CmdQuit:
		return m, tea.Quit
	case keymap.CmdRestart:
		m.setMessage("restarting...", false)
		return m, restart(m.ctrl)
	case keymap.CmdClearHistory:
		return m, clearHistory(m.ctrl)
	case keymap.CmdToggleActive:
		m.showAll = !m.showAll
		m.rebuild()
	case keymap.CmdToggleOrder:
		m.desc = !m.desc
		m.rebuild()
	case keymap.CmdToggleHelp:
		m.showHelp = !m.showHelp
		m.layout()
	case keymap.CmdSortIn:
		m.selectSort(traffic.SortByIn)
	case keymap.CmdSortOut:
		m.selectSort(traffic.SortByOut)
	case keymap.CmdSortName:
		m.selectSort(traffic.SortByName)
	case keymap.CmdSortPID:
		m.selectSort(traffic.SortByPID)
	case keymap.CmdSortConns:
		m.selectSort(traffic.SortByConnections)
	}
	return m, nil
}

// selectSort sorts by key. Selecting the current column reverses the
// order; a new column starts descending.
func (m *Model) selectSort(key traffic.SortKey) {
	if key == m.sortKey {
		m.desc = !m.desc
	} else {
		m.sortKey = key
		m.desc = true
	}
	m.rebuild()
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
}

// visible returns the processes to list, filtered and sorted.
func (m *Model) visible() []traffic.ProcessView {
	views := slices.Clone(m.snap.Processes)
	if !m.showAll {
		views = traffic.Active(views, m.opts.MinRate)
	}
	traffic.SortProcesses(views, m.sortKey, m.desc)
	if m.opts.MaxRows > 0 && len(views) > m.opts.MaxRows {
		views = views[:m.opts.MaxRows]
	}
	return views
}

// rebuild refreshes the table rows, keeping the cursor on the same process
// when it is still listed.
func (m *Model) rebuild() {
	var selected traffic.ProcessKey
	hadSelection := false
	if c := m.table.Cursor(); c >= 0 && c < len(m.rows) {
		selected, hadSelection = m.rows[c].Key, true
	}

	m.rows = m.visible()
	rows := make([]table.Row, len(m.rows))
	for i, v := range m.rows {
		rows[i] = processRow(v)
	}
	m.table.SetColumns(columns(m.width, m.sortKey, m.desc))
	m.table.SetRows(rows)

	cursor := 0
	if hadSelection {
		if i := slices.IndexFunc(m.rows, func(v traffic.ProcessView) bool { return v.Key == selected }); i >= 0 {
			cursor = i
		}
	}
	m.table.SetCursor(cursor)
}

func (m *Model) layout() {
	h := m.height - chromeHeight
	if m.bannerText() != "" {
		h--
	}
	if m.showHelp {
		h -= len(m.keys.HelpEntries(true))
	}
	m.table.SetHeight(max(h, 3))
	m.table.SetWidth(max(m.width, 0))
	m.rebuild()
}

func processRow(v traffic.ProcessView) table.Row {
	in, out := "-", "-"
	if v.HasRate {
		in = util.FormatRate(v.Rate.InPerSec)
		out = util.FormatRate(v.Rate.OutPerSec)
	}
	return table.Row{
		v.Key.Name,
		strconv.Itoa(v.Key.PID),
		in,
		out,
		strconv.Itoa(v.Connections),
	}
}

// columns lays the table out for width, marking the sorted column.
func columns(width int, key traffic.SortKey, desc bool) []table.Column {
	fixed := pidWidth + 2*rateWidth + connsWidth + 5*cellPadding
	nameWidth := max(width-fixed, minNameWidth)

	title := func(name string, k traffic.SortKey) string {
		if k != key {
			return name
		}
		if desc {
			return name + " ▼"
		}
		return name + " ▲"
	}

	return []table.Column{
		{Title: title("Process", traffic.SortByName), Width: nameWidth},
		{Title: title("PID", traffic.SortByPID), Width: pidWidth},
		{Title: title("Download", traffic.SortByIn), Width: rateWidth},
		{Title: title("Upload", traffic.SortByOut), Width: rateWidth},
		{Title: title("Conns", traffic.SortByConnections), Width: connsWidth},
	}
}
