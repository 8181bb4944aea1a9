package tui

import (
	"context"
	"io"
	"time"

	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/traffic"
	tea "github.com/charmbracelet/bubbletea"
)

// requestTimeout bounds each call into the controller.
const requestTimeout = 2 * time.Second

// tickMsg is sent periodically to refresh the snapshot
type tickMsg time.Time

// snapshotMsg carries the result of a snapshot fetch
type snapshotMsg struct {
	snap   traffic.Snapshot
	status monitor.Status
	err    error
}

// actionMsg reports the outcome of a user action such as a restart
type actionMsg struct {
	action string
	err    error
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshot(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := ctrl.Snapshot(ctx)
		return snapshotMsg{snap: snap, status: ctrl.Status(), err: err}
	}
}

// restartExec runs a restart with the terminal released, so a password
// prompt can read from it.
type restartExec struct {
	ctrl Controller
}

func (r *restartExec) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return r.ctrl.Restart(ctx)
}

func (r *restartExec) SetStdin(io.Reader)  {}
func (r *restartExec) SetStdout(io.Writer) {}
func (r *restartExec) SetStderr(io.Writer) {}

func restart(ctrl Controller) tea.Cmd {
	return tea.Exec(&restartExec{ctrl: ctrl}, func(err error) tea.Msg {
		return actionMsg{action: "restart", err: err}
	})
}

func clearHistory(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return actionMsg{action: "clear history", err: ctrl.ClearHistory(ctx)}
	}
}
