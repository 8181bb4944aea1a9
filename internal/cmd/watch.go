package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/Iron-Ham/netmon/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live per-process bandwidth",
	Long: `Start monitoring and show per-process download and upload rates.

On a terminal this opens the interactive view. When stdout is not a
terminal, or with --json, one JSON snapshot is written per interval.

Examples:
  # Interactive view sorted by upload rate
  netmon watch --sort out

  # Stream snapshots as JSON lines
  netmon watch --json | jq '.totals'`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchSort    sortFlag
	watchMinRate float64
	watchAll     bool
	watchJSON    bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().VarP(&watchSort, "sort", "s", "Sort column: in, out, name, pid, conns (default: tui.sort_by)")
	watchCmd.Flags().Float64Var(&watchMinRate, "min-rate", 0, "Hide processes below this many bytes/s (default: tui.min_rate)")
	watchCmd.Flags().BoolVarP(&watchAll, "all", "a", false, "Show every process, including idle ones")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Write JSON lines instead of the interactive view")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sortBy := cfg.TUI.SortBy
	if cmd.Flags().Changed("sort") {
		sortBy = watchSort.String()
	}
	sortKey, err := traffic.ParseSortKey(sortBy)
	if err != nil {
		return err
	}
	minRate := cfg.TUI.MinRate
	if cmd.Flags().Changed("min-rate") {
		minRate = watchMinRate
	}
	if watchAll {
		minRate = 0
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	watchConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !watchJSON && isTerminal(os.Stdout) && isTerminal(os.Stdin)

	// Any password prompt happens here, before the TUI takes the terminal.
	mgr, startErr := startMonitor(ctx, cfg, logger)
	defer func() { _ = mgr.Stop() }()

	if !interactive {
		if startErr != nil {
			return startErr
		}
		return watchJSONLines(ctx, cmd.OutOrStdout(), mgr, cfg.Publisher.Interval(), sortKey, minRate, logger)
	}

	// The TUI shows a failed launch with its restart banner.
	if startErr != nil {
		logger.Error("failed to start monitoring", "error", startErr)
	}
	app := tui.New(mgr, tui.Options{
		Refresh: cfg.TUI.Refresh(),
		SortKey: sortKey,
		MinRate: minRate,
		MaxRows: cfg.TUI.MaxRows,
		Logger:  logger,
	})
	return app.Run(ctx)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// watchJSONLines streams the manager's session as JSON lines until ctx
// ends or the session stops, then writes any window not yet printed and
// returns the session's error.
func watchJSONLines(ctx context.Context, w io.Writer, mgr *monitor.Manager, interval time.Duration, key traffic.SortKey, minRate float64, logger *logging.Logger) error {
	sess := mgr.Current()
	if sess == nil {
		return mgr.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	pub := monitor.NewPublisher(mgr, interval, logger)
	last, err := streamJSON(ctx, w, pub, key, minRate)
	if err != nil {
		return err
	}

	if final, err := sess.Snapshot(context.Background()); err == nil && final.Window > last {
		if err := writeJSONLine(w, present(final, key, true, minRate)); err != nil {
			return err
		}
	}
	logger.Debug("snapshot stream ended", "last_window", last)
	return sess.Err()
}

// streamJSON writes one JSON line per published snapshot until ctx ends
// and returns the last window written.
func streamJSON(ctx context.Context, w io.Writer, pub *monitor.Publisher, key traffic.SortKey, minRate float64) (uint64, error) {
	snaps, unsubscribe := pub.Subscribe()
	defer unsubscribe()
	go pub.Run(ctx)

	var last uint64
	for snap := range snaps {
		if snap.IsZero() || snap.Window == last {
			continue
		}
		if err := writeJSONLine(w, present(snap, key, true, minRate)); err != nil {
			return last, err
		}
		last = snap.Window
	}
	return last, nil
}

func writeJSONLine(w io.Writer, snap traffic.Snapshot) error {
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// present returns snap with its processes filtered and sorted for output.
func present(snap traffic.Snapshot, key traffic.SortKey, desc bool, minRate float64) traffic.Snapshot {
	views := traffic.Active(slices.Clone(snap.Processes), minRate)
	traffic.SortProcesses(views, key, desc)
	snap.Processes = views
	return snap
}
