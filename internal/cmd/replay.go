package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/netmon/internal/aggregator"
	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/Iron-Ham/netmon/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Compute rates from captured sampling tool output",
	Long: `Replay a file of captured nettop output ("-" for stdin) through the
parser and aggregator, as if each window had arrived --interval apart.

Examples:
  # Capture a minute of samples, then inspect the result
  nettop -P -L 60 -x > capture.csv
  netmon replay capture.csv

  # Print every window as YAML
  netmon replay capture.csv --every --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayInterval time.Duration
	replayFormat   = newChoiceFlag(formatTable, formatTable, formatJSON, formatYAML)
	replayEvery    bool
	replaySort     = sortFlag{key: traffic.SortByIn}
	replayLimit    int
	replayMinRate  float64
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// replayEpoch stamps the first replayed window.
var replayEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().DurationVar(&replayInterval, "interval", time.Second, "Time between consecutive windows")
	replayCmd.Flags().VarP(replayFormat, "format", "f", "Output format: table, json, yaml")
	replayCmd.Flags().BoolVar(&replayEvery, "every", false, "Print a snapshot after every window, not just the last")
	replayCmd.Flags().VarP(&replaySort, "sort", "s", "Sort column: in, out, name, pid, conns")
	replayCmd.Flags().IntVarP(&replayLimit, "limit", "n", 0, "Show at most this many processes (0 for all)")
	replayCmd.Flags().Float64Var(&replayMinRate, "min-rate", 0, "Hide processes below this many bytes/s")
}

// replayOptions controls a replay run.
type replayOptions struct {
	Interval       time.Duration
	HistorySize    int
	StaleThreshold int
}

// replay feeds every window decoded from r into a fresh aggregator on a
// synthetic clock, calling emit (when non-nil) with the snapshot after each
// window. It returns the final snapshot.
func replay(r io.Reader, schema nettop.Schema, opts replayOptions, emit func(traffic.Snapshot) error) (traffic.Snapshot, nettop.DecodeStats, error) {
	if opts.Interval <= 0 {
		return traffic.Snapshot{}, nettop.DecodeStats{}, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}

	agg := aggregator.New(aggregator.Options{
		HistorySize:    opts.HistorySize,
		StaleThreshold: opts.StaleThreshold,
	})
	now, last := replayEpoch, replayEpoch

	stats, err := nettop.Decode(r, schema, func(w nettop.Window) error {
		agg.ApplyWindow(now, w)
		last = now
		now = now.Add(opts.Interval)
		if emit != nil {
			return emit(agg.Snapshot(last))
		}
		return nil
	})
	if err != nil {
		return traffic.Snapshot{}, stats, err
	}
	return agg.Snapshot(last), stats, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	key := replaySort.key
	format := replayFormat.String()

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	show := func(snap traffic.Snapshot) error {
		snap = present(snap, key, true, replayMinRate)
		if replayLimit > 0 && len(snap.Processes) > replayLimit {
			snap.Processes = snap.Processes[:replayLimit]
		}
		return writeSnapshot(out, snap, format, terminalWidth(out))
	}

	var emit func(traffic.Snapshot) error
	if replayEvery {
		emit = show
	}

	final, stats, err := replay(in, cfg.Schema.NettopSchema(), replayOptions{
		Interval:       replayInterval,
		HistorySize:    cfg.Aggregator.HistorySize,
		StaleThreshold: cfg.Aggregator.StaleThreshold,
	}, emit)
	if err != nil {
		return err
	}
	if !replayEvery {
		if err := show(final); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d lines: %d windows, %d ignored\n", stats.Lines, stats.Windows, stats.Ignored)
	return nil
}

// terminalWidth returns the width of w when it is a terminal, or 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// writeSnapshot renders snap in format. A positive width truncates table
// lines.
func writeSnapshot(w io.Writer, snap traffic.Snapshot, format string, width int) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderSnapshotTable(snap, width))
		return err
	}
}

// renderSnapshotTable renders snap as aligned text columns.
func renderSnapshotTable(snap traffic.Snapshot, width int) string {
	const nameWidth = 24
	line := func(name, pid, in, out, conns string) string {
		s := util.PadRight(util.TruncateWidth(name, nameWidth), nameWidth) + " " +
			fmt.Sprintf("%8s %13s %13s %6s", pid, in, out, conns)
		s = strings.TrimRight(s, " ")
		if width > 0 {
			s = util.TruncateWidth(s, width)
		}
		return s + "\n"
	}

	summary := fmt.Sprintf("window %d  in %s  out %s  processes %d",
		snap.Window, util.FormatRate(snap.Totals.InPerSec), util.FormatRate(snap.Totals.OutPerSec), snap.Len())
	if width > 0 {
		summary = util.TruncateWidth(summary, width)
	}

	var sb strings.Builder
	sb.WriteString(summary + "\n")
	sb.WriteString(line("PROCESS", "PID", "DOWNLOAD", "UPLOAD", "CONNS"))
	for _, p := range snap.Processes {
		in, out := "-", "-"
		if p.HasRate {
			in, out = util.FormatRate(p.Rate.InPerSec), util.FormatRate(p.Rate.OutPerSec)
		}
		sb.WriteString(line(p.Key.Name, strconv.Itoa(p.Key.PID), in, out, strconv.Itoa(p.Connections)))
	}
	return sb.String()
}
