package tui

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/Iron-Ham/netmon/internal/tui/styles"
	"github.com/Iron-Ham/netmon/internal/util"
)

// sparkLabelWidth is the width of the "in " / "out" labels before each sparkline.
const sparkLabelWidth = 4

// View renders the UI.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.renderTotals())
	sb.WriteString("\n")
	sb.WriteString(m.renderGraph())
	sb.WriteString("\n")
	if banner := m.bannerText(); banner != "" {
		sb.WriteString(styles.Banner.Render(banner))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderTable())
	sb.WriteString("\n")
	sb.WriteString(m.renderHelp())

	return sb.String()
}

func (m Model) renderHeader() string {
	parts := []string{
		styles.Title.Render("netmon"),
		styles.Badge(m.status.State.String()),
	}
	if m.status.SessionID != "" {
		parts = append(parts, styles.Muted.Render("session "+m.status.SessionID))
	}
	if m.snap.Window > 0 {
		parts = append(parts, styles.Muted.Render(fmt.Sprintf("window %d", m.snap.Window)))
	}
	if m.status.Restarts > 0 {
		parts = append(parts, styles.Muted.Render(fmt.Sprintf("restarts %d", m.status.Restarts)))
	}
	return m.fit(strings.Join(parts, " "))
}

func (m Model) renderTotals() string {
	listed := len(m.rows)
	filter := "active"
	if m.showAll || m.opts.MinRate <= 0 {
		filter = "all"
	}
	line := fmt.Sprintf("%s  %s  %s",
		styles.In.Render("↓ "+util.FormatRate(m.snap.Totals.InPerSec)),
		styles.Out.Render("↑ "+util.FormatRate(m.snap.Totals.OutPerSec)),
		styles.Muted.Render(fmt.Sprintf("%d of %d processes (%s)", listed, m.snap.Len(), filter)),
	)
	return m.fit(line)
}

// renderGraph draws inbound and outbound sparklines over the totals
// history, sharing one scale.
func (m Model) renderGraph() string {
	hist := m.snap.TotalsHistory
	width := max(m.width-sparkLabelWidth, 10)

	ins := make([]float64, len(hist))
	outs := make([]float64, len(hist))
	var peak float64
	for i, r := range hist {
		ins[i], outs[i] = r.InPerSec, r.OutPerSec
		peak = max(peak, r.InPerSec, r.OutPerSec)
	}

	caption := "no samples yet"
	if len(hist) > 0 {
		caption = fmt.Sprintf("last %d samples, peak %s", len(hist), util.FormatRate(peak))
	}

	return strings.Join([]string{
		styles.Muted.Render(util.PadRight("in", sparkLabelWidth)) + styles.In.Render(Sparkline(ins, width, peak)),
		styles.Muted.Render(util.PadRight("out", sparkLabelWidth)) + styles.Out.Render(Sparkline(outs, width, peak)) +
			"\n" + styles.Muted.Render(m.fitPlain(caption)),
	}, "\n")
}

func (m Model) renderTable() string {
	if !m.fetched {
		return styles.Muted.Render("waiting for the first sample...")
	}
	if len(m.rows) == 0 {
		if len(m.snap.Processes) > 0 && !m.showAll {
			return styles.Muted.Render("no process above " + util.FormatRate(m.opts.MinRate) + ", press a to show all")
		}
		return styles.Muted.Render("no network activity")
	}
	return m.table.View()
}

func (m Model) renderHelp() string {
	var parts []string
	for _, e := range m.keys.HelpEntries(m.showHelp) {
		parts = append(parts, styles.HelpKey.Render(e[0])+" "+e[1])
	}
	sep := "  "
	if m.showHelp {
		sep = "\n"
	}
	help := strings.Join(parts, sep)
	if m.message != "" {
		style := styles.Muted
		if m.messageErr {
			style = styles.Error
		}
		help = style.Render(m.message) + "  " + help
	}
	return styles.HelpBar.Render(help)
}

// bannerText is the stopped-monitoring notice, or "" while running.
func (m Model) bannerText() string {
	if !m.status.State.IsTerminal() {
		return ""
	}
	if m.status.Err != nil {
		return m.fitPlain(fmt.Sprintf("Monitoring stopped: %v. Press r to restart.", m.status.Err))
	}
	return "Monitoring stopped. Press r to restart."
}

func (m Model) fit(s string) string {
	if m.width <= 0 {
		return s
	}
	return util.TruncateANSI(s, m.width)
}

func (m Model) fitPlain(s string) string {
	if m.width <= 0 {
		return s
	}
	return util.TruncateWidth(s, m.width)
}

// Sorted returns the current sort column and direction.
func (m Model) Sorted() (traffic.SortKey, bool) {
	return m.sortKey, m.desc
}
